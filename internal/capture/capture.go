// Package capture abstracts the audio source a recorder reads from.
package capture

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrNoAudioTrack     = errors.New("capture source has no audio track")
	ErrAlreadyStarted   = errors.New("capture already started")
)

// State mirrors the native recorder state of a device.
type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

type Source string

const (
	SourceMicrophone Source = "microphone"
	SourceTab        Source = "tab"
)

// ChunkFunc receives one time slice of encoded audio. Calls are sequential.
type ChunkFunc func(data []byte)

type Device interface {
	HasAudio() bool
	Start(timeslice time.Duration, emit ChunkFunc) error
	Pause()
	Resume()
	State() State
	// Stop ends capture. The returned channel is closed after the final chunk
	// has been emitted and the device released.
	Stop() <-chan struct{}
	// Release frees a device that was never started.
	Release()
}

type Acquirer interface {
	Acquire(ctx context.Context, source Source) (Device, error)
}
