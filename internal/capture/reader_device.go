package capture

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

const DefaultChunkSize = 16 << 10

// ReaderDevice replays encoded audio from a reader, emitting up to chunkSize
// bytes every timeslice.
type ReaderDevice struct {
	r         io.Reader
	closer    io.Closer
	chunkSize int
	hasAudio  bool

	// OnEnd is called once when the reader is exhausted.
	OnEnd func()

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewReaderDevice(r io.Reader, chunkSize int) *ReaderDevice {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	d := &ReaderDevice{
		r:         r,
		chunkSize: chunkSize,
		hasAudio:  true,
		state:     StateInactive,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

func (d *ReaderDevice) HasAudio() bool { return d.hasAudio }

func (d *ReaderDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *ReaderDevice) Start(timeslice time.Duration, emit ChunkFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return ErrAlreadyStarted
	default:
	}
	if d.state != StateInactive {
		return ErrAlreadyStarted
	}
	d.state = StateRecording
	go d.run(timeslice, emit)
	return nil
}

func (d *ReaderDevice) Pause() {
	d.mu.Lock()
	if d.state == StateRecording {
		d.state = StatePaused
	}
	d.mu.Unlock()
}

func (d *ReaderDevice) Resume() {
	d.mu.Lock()
	if d.state == StatePaused {
		d.state = StateRecording
	}
	d.mu.Unlock()
}

func (d *ReaderDevice) Stop() <-chan struct{} {
	d.mu.Lock()
	running := d.state != StateInactive
	d.mu.Unlock()

	if !running {
		d.Release()
		return d.done
	}
	d.once.Do(func() { close(d.stop) })
	return d.done
}

func (d *ReaderDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.done:
		return
	default:
	}
	if d.state != StateInactive {
		return
	}
	d.closeReader()
	close(d.done)
}

func (d *ReaderDevice) closeReader() {
	if d.closer != nil {
		_ = d.closer.Close()
	}
}

func (d *ReaderDevice) run(timeslice time.Duration, emit ChunkFunc) {
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	ended := false
	finish := func() {
		d.mu.Lock()
		d.state = StateInactive
		d.closeReader()
		close(d.done)
		d.mu.Unlock()
		if ended && d.OnEnd != nil {
			d.OnEnd()
		}
	}

	buf := make([]byte, d.chunkSize)
	for {
		select {
		case <-d.stop:
			// final flush
			if n, _ := io.ReadFull(d.r, buf); n > 0 {
				emit(append([]byte(nil), buf[:n]...))
			}
			finish()
			return
		case <-ticker.C:
			if d.State() == StatePaused {
				continue
			}
			n, err := io.ReadFull(d.r, buf)
			if n > 0 {
				emit(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				ended = true
				finish()
				return
			}
		}
	}
}

// FileAcquirer opens an audio file as the capture source. Tab capture is
// served from TabPath, which may be empty to model a tab without audio.
type FileAcquirer struct {
	MicrophonePath string
	TabPath        string
	ChunkSize      int
	OnEnd          func()
}

func (a *FileAcquirer) Acquire(_ context.Context, source Source) (Device, error) {
	path := a.MicrophonePath
	if source == SourceTab {
		path = a.TabPath
	}
	if path == "" {
		d := NewReaderDevice(emptyReader{}, a.ChunkSize)
		d.hasAudio = false
		return d, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	d := NewReaderDevice(f, a.ChunkSize)
	d.hasAudio = st.Size() > 0
	d.OnEnd = a.OnEnd
	return d, nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
