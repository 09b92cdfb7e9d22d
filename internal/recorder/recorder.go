package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/capture"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/realtime"
)

const (
	DefaultTimeslice = time.Second

	msgPermissionDenied = "Capture permission was denied."
	msgNoAudioTrack     = "The selected source has no audio track."
	msgBacklog          = "Processing backlog detected."
	msgDisconnected     = "Connection lost, reconnecting."
)

var ErrInvalidState = errors.New("operation not allowed in current state")

// Channel is the realtime connection the recorder talks through.
type Channel interface {
	Join(sessionID, userID string) error
	SendChunk(p realtime.AudioStreamPayload) error
	StopSession(p realtime.StopSessionPayload) error
}

type Config struct {
	SessionID string
	UserID    string
	Timeslice time.Duration
	MimeType  string

	Acquirer capture.Acquirer
	Channel  Channel
	Store    StatusStore // optional
	Log      *logrus.Logger

	// OnChange receives a snapshot after every state or UI change.
	OnChange func(Snapshot)
}

// Snapshot is the UI-facing view of a recorder.
type Snapshot struct {
	Status     models.Status
	Confirmed  bool
	Tokens     []string
	Transcript []string
	Summary    string
	Error      string
}

type Recorder struct {
	cfg Config
	log *logrus.Entry

	mu         sync.Mutex
	machine    *Machine
	persisted  models.Status
	device     capture.Device
	confirmed  bool
	offset     float64
	tokens     []string
	transcript []string
	summary    string
	errMsg     string
}

// New builds a recorder and replays the remembered status for the session.
func New(cfg Config) *Recorder {
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = DefaultTimeslice
	}
	if cfg.MimeType == "" {
		cfg.MimeType = models.DefaultMimeType
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}

	r := &Recorder{
		cfg:     cfg,
		log:     cfg.Log.WithField("session_id", cfg.SessionID),
		machine: NewMachine(),
	}
	if cfg.Store != nil {
		st, ok, err := cfg.Store.Load(cfg.SessionID)
		if err != nil {
			r.log.WithError(err).Warn("load remembered status")
		}
		if ok {
			r.machine.Sync(string(st))
			r.persisted = r.machine.State()
		}
	}
	return r
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     r.machine.State(),
		Confirmed:  r.confirmed,
		Tokens:     append([]string(nil), r.tokens...),
		Transcript: append([]string(nil), r.transcript...),
		Summary:    r.summary,
		Error:      r.errMsg,
	}
}

// settleLocked saves the status when it differs from the last saved one and
// returns the current snapshot. Saving under r.mu keeps the store in the same
// order as the machine.
func (r *Recorder) settleLocked() Snapshot {
	if st := r.machine.State(); r.cfg.Store != nil && st != r.persisted {
		if err := r.cfg.Store.Save(r.cfg.SessionID, st); err != nil {
			r.log.WithError(err).Warn("persist status")
		} else {
			r.persisted = st
		}
	}
	return r.snapshotLocked()
}

// notify hands a snapshot to OnChange. Callers hold no lock.
func (r *Recorder) notify(snap Snapshot) {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(snap)
	}
}

func (r *Recorder) StartMicrophone(ctx context.Context) error {
	return r.start(ctx, capture.SourceMicrophone)
}

func (r *Recorder) StartTab(ctx context.Context) error {
	return r.start(ctx, capture.SourceTab)
}

func (r *Recorder) start(ctx context.Context, source capture.Source) error {
	r.mu.Lock()
	if !r.machine.Can(EventStart) || r.device != nil {
		r.mu.Unlock()
		return ErrInvalidState
	}
	r.mu.Unlock()

	dev, err := r.cfg.Acquirer.Acquire(ctx, source)
	if err == nil && !dev.HasAudio() {
		dev.Release()
		err = capture.ErrNoAudioTrack
	}
	if err != nil {
		r.fail(err)
		return err
	}

	r.mu.Lock()
	prev := r.machine.State()
	if r.device != nil || !r.machine.Fire(EventStart) {
		r.mu.Unlock()
		dev.Release()
		return ErrInvalidState
	}
	r.device = dev
	r.offset = 0
	r.mu.Unlock()

	if err := dev.Start(r.cfg.Timeslice, r.onChunk); err != nil {
		dev.Release()
		r.mu.Lock()
		r.device = nil
		r.machine.Sync(string(prev))
		r.mu.Unlock()
		r.fail(err)
		return err
	}

	r.mu.Lock()
	r.summary = ""
	r.errMsg = ""
	snap := r.settleLocked()
	r.mu.Unlock()

	r.log.WithField("source", source).Info("recording started")
	r.notify(snap)
	return nil
}

func (r *Recorder) fail(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		msg = msgPermissionDenied
	case errors.Is(err, capture.ErrNoAudioTrack):
		msg = msgNoAudioTrack
	}

	r.mu.Lock()
	r.errMsg = msg
	snap := r.settleLocked()
	r.mu.Unlock()

	r.log.WithError(err).Warn("capture unavailable")
	r.notify(snap)
}

func (r *Recorder) onChunk(data []byte) {
	r.mu.Lock()
	start := r.offset
	r.offset += r.cfg.Timeslice.Seconds()
	end := r.offset
	r.mu.Unlock()

	err := r.cfg.Channel.SendChunk(realtime.AudioStreamPayload{
		SessionID: r.cfg.SessionID,
		UserID:    r.cfg.UserID,
		Chunk:     data,
		Start:     start,
		End:       end,
		MimeType:  r.cfg.MimeType,
	})
	if err != nil {
		r.log.WithError(err).WithField("start", start).Warn("send chunk")
	}
}

// Pause is a no-op unless the device is actively recording.
func (r *Recorder) Pause() {
	r.mu.Lock()
	if r.device == nil || r.device.State() != capture.StateRecording || !r.machine.Fire(EventPause) {
		r.mu.Unlock()
		return
	}
	r.device.Pause()
	snap := r.settleLocked()
	r.mu.Unlock()
	r.notify(snap)
}

// Resume is a no-op unless the device is paused.
func (r *Recorder) Resume() {
	r.mu.Lock()
	if r.device == nil || r.device.State() != capture.StatePaused || !r.machine.Fire(EventResume) {
		r.mu.Unlock()
		return
	}
	r.device.Resume()
	snap := r.settleLocked()
	r.mu.Unlock()
	r.notify(snap)
}

// Stop moves to PROCESSING at once, waits for the device to deliver its last
// chunk and then asks the server to finalize. Without a live device (after a
// restart) the stop request is sent straight away.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.machine.Fire(EventProcess) {
		r.mu.Unlock()
		return ErrInvalidState
	}
	dev := r.device
	snap := r.settleLocked()
	r.mu.Unlock()
	r.notify(snap)

	if dev != nil {
		select {
		case <-dev.Stop():
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.device = nil
		r.mu.Unlock()
	}

	r.log.Info("recording stopped, requesting finalization")
	return r.cfg.Channel.StopSession(realtime.StopSessionPayload{
		SessionID: r.cfg.SessionID,
		UserID:    r.cfg.UserID,
	})
}

// Reset returns to IDLE and clears the session view. A live device is
// stopped without requesting finalization.
func (r *Recorder) Reset() {
	r.mu.Lock()
	dev := r.device
	r.device = nil
	r.machine.Fire(EventReset)
	r.tokens = nil
	r.transcript = nil
	r.summary = ""
	r.errMsg = ""
	snap := r.settleLocked()
	r.mu.Unlock()

	if dev != nil {
		<-dev.Stop()
	}
	r.notify(snap)
}

// Disconnected records a transient connectivity error. The next joined ack
// is treated as a fresh confirmation.
func (r *Recorder) Disconnected(err error) {
	r.mu.Lock()
	r.confirmed = false
	r.errMsg = msgDisconnected
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.log.WithError(err).Warn("channel disconnected")
	r.notify(snap)
}

// Connected joins the session on a fresh channel.
func (r *Recorder) Connected() error {
	return r.cfg.Channel.Join(r.cfg.SessionID, r.cfg.UserID)
}

// HandleEvent applies a server event to the recorder.
func (r *Recorder) HandleEvent(env realtime.Envelope) {
	r.mu.Lock()
	changed := r.applyLocked(env)
	snap := r.settleLocked()
	r.mu.Unlock()

	if changed {
		r.notify(snap)
	}
}

func (r *Recorder) applyLocked(env realtime.Envelope) bool {
	switch env.Event {
	case realtime.EventJoined:
		var p realtime.JoinedPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return false
		}
		r.confirmed = true
		if r.errMsg == msgDisconnected {
			r.errMsg = ""
		}
		// a live capture outranks the server, which never sees pauses
		if r.device == nil && p.State != r.machine.State() {
			r.log.WithFields(logrus.Fields{"local": r.machine.State(), "server": p.State}).Info("resyncing to server state")
			r.machine.Sync(string(p.State))
		}
		return true

	case realtime.EventTranscriptionToken:
		var p realtime.TokenPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return false
		}
		r.tokens = append(r.tokens, p.Token)
		return true

	case realtime.EventTranscriptionChunk:
		var p realtime.ChunkPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return false
		}
		r.transcript = append(r.transcript, p.Text)
		return true

	case realtime.EventBufferOverflow:
		r.errMsg = msgBacklog
		return true

	case realtime.EventProcessing:
		r.confirmed = true
		if r.machine.State() != models.StatusProcessing {
			r.machine.Sync(string(models.StatusProcessing))
		}
		return true

	case realtime.EventCompleted:
		var p realtime.CompletedPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return false
		}
		r.confirmed = true
		r.summary = p.Summary
		if p.Transcript != "" {
			r.transcript = strings.Split(p.Transcript, "\n")
		}
		if !r.machine.Fire(EventComplete) {
			r.machine.Sync(string(models.StatusCompleted))
		}
		return true

	case realtime.EventTranscriptionError, realtime.EventSessionError, realtime.EventJoinError:
		var p realtime.ErrorPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return false
		}
		r.errMsg = p.Message
		return true
	}
	return false
}
