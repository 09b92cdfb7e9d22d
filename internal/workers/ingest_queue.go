// Package workers runs the per-session transcription queues.
package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/providers/stt"
	"github.com/yoockh/scribe/internal/realtime"
)

// DefaultHighWaterMark is the backlog size past which a buffer-overflow event
// is emitted.
const DefaultHighWaterMark = 32

// ErrSessionStopping is returned by Enqueue once a stop is pending.
var ErrSessionStopping = errors.New("session is stopping")

// SegmentWriter persists the text of one processed chunk.
type SegmentWriter interface {
	AppendSegment(ctx context.Context, chunk models.Chunk, text string, tokens []string) (*models.TranscriptSegment, error)
}

type sessionBuffer struct {
	queue      []models.Chunk
	processing bool
	stopping   bool
	overflowed bool
	nextSeq    int64
	drained    []chan struct{}
}

// IngestQueue keeps one FIFO per session and runs at most one transcription
// call per session at a time. Sessions drain independently of each other.
type IngestQueue struct {
	ctx       context.Context
	stt       stt.Provider
	segments  SegmentWriter
	out       realtime.Broadcaster
	log       *logrus.Logger
	highWater int

	mu      sync.Mutex
	buffers map[string]*sessionBuffer
}

// NewIngestQueue builds a queue. ctx bounds provider calls; it is the process
// lifetime, not any single connection.
func NewIngestQueue(ctx context.Context, provider stt.Provider, segments SegmentWriter, out realtime.Broadcaster, log *logrus.Logger, highWater int) *IngestQueue {
	if highWater <= 0 {
		highWater = DefaultHighWaterMark
	}
	return &IngestQueue{
		ctx:       ctx,
		stt:       provider,
		segments:  segments,
		out:       out,
		log:       log,
		highWater: highWater,
		buffers:   make(map[string]*sessionBuffer),
	}
}

// Enqueue appends a chunk to its session's queue and starts draining if the
// session is idle.
func (q *IngestQueue) Enqueue(chunk models.Chunk) error {
	if chunk.MimeType == "" {
		chunk.MimeType = models.DefaultMimeType
	}

	q.mu.Lock()
	b := q.buffer(chunk.SessionID)
	if b.stopping {
		q.mu.Unlock()
		return ErrSessionStopping
	}

	b.nextSeq++
	chunk.Seq = b.nextSeq
	b.queue = append(b.queue, chunk)

	size := len(b.queue)
	overflow := size > q.highWater && !b.overflowed
	if overflow {
		b.overflowed = true
	}

	start := !b.processing
	if start {
		b.processing = true
	}
	q.mu.Unlock()

	if overflow {
		q.log.WithFields(logrus.Fields{"session_id": chunk.SessionID, "size": size}).Warn("ingestion backlog over high-water mark")
		q.out.Broadcast(chunk.SessionID, realtime.EventBufferOverflow, realtime.OverflowPayload{Size: size})
	}
	if start {
		go q.drain(chunk.SessionID)
	}
	return nil
}

// Stop refuses further chunks for the session and returns a channel that is
// closed once every accepted chunk has been processed. In-flight work is not
// cancelled.
func (q *IngestQueue) Stop(sessionID string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan struct{})
	b := q.buffer(sessionID)
	b.stopping = true
	if !b.processing && len(b.queue) == 0 {
		close(ch)
		return ch
	}
	b.drained = append(b.drained, ch)
	return ch
}

// Release drops the session's buffer. A later chunk starts a fresh one.
func (q *IngestQueue) Release(sessionID string) {
	q.mu.Lock()
	b, ok := q.buffers[sessionID]
	if ok {
		delete(q.buffers, sessionID)
		for _, ch := range b.drained {
			close(ch)
		}
	}
	q.mu.Unlock()
}

// Pending returns the number of chunks waiting, excluding the one in flight.
func (q *IngestQueue) Pending(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if b, ok := q.buffers[sessionID]; ok {
		return len(b.queue)
	}
	return 0
}

func (q *IngestQueue) buffer(sessionID string) *sessionBuffer {
	b, ok := q.buffers[sessionID]
	if !ok {
		b = &sessionBuffer{}
		q.buffers[sessionID] = b
	}
	return b
}

// drain processes the session's queue one chunk at a time until it is empty.
// The processing flag stays set for the whole run, so no second drain can
// start for the same session.
func (q *IngestQueue) drain(sessionID string) {
	for {
		q.mu.Lock()
		b, ok := q.buffers[sessionID]
		if !ok {
			q.mu.Unlock()
			return
		}
		if len(b.queue) == 0 {
			b.processing = false
			waiters := b.drained
			b.drained = nil
			q.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}

		chunk := b.queue[0]
		b.queue[0] = models.Chunk{}
		b.queue = b.queue[1:]
		if b.overflowed && len(b.queue) <= q.highWater {
			b.overflowed = false
		}
		q.mu.Unlock()

		q.process(chunk)
	}
}

func (q *IngestQueue) process(chunk models.Chunk) {
	log := q.log.WithFields(logrus.Fields{
		"session_id": chunk.SessionID,
		"seq":        chunk.Seq,
		"mime_type":  chunk.MimeType,
		"bytes":      len(chunk.Data),
	})

	text, tokens, err := q.transcribe(chunk)
	if err != nil {
		log.WithError(err).Error("transcription failed")
		q.out.Broadcast(chunk.SessionID, realtime.EventTranscriptionError, realtime.ErrorPayload{Message: err.Error()})
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Debug("chunk produced no text")
		return
	}

	if _, err := q.segments.AppendSegment(q.ctx, chunk, text, tokens); err != nil {
		log.WithError(err).Error("persist segment failed")
		q.out.Broadcast(chunk.SessionID, realtime.EventTranscriptionError, realtime.ErrorPayload{Message: "failed to save transcript segment"})
		return
	}
	q.out.Broadcast(chunk.SessionID, realtime.EventTranscriptionChunk, realtime.ChunkPayload{Text: text})
}

func (q *IngestQueue) transcribe(chunk models.Chunk) (text string, tokens []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcription provider panic: %v", r)
		}
	}()

	text, err = q.stt.StreamTranscribe(q.ctx, chunk.Data, chunk.MimeType, func(token string) {
		tokens = append(tokens, token)
		q.out.Broadcast(chunk.SessionID, realtime.EventTranscriptionToken, realtime.TokenPayload{Token: token})
	})
	return text, tokens, err
}
