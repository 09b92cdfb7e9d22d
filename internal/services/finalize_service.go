package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/providers/llm"
	"github.com/yoockh/scribe/internal/realtime"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
)

// Drainer is the part of the ingestion queue the finalizer depends on.
type Drainer interface {
	Stop(sessionID string) <-chan struct{}
	Release(sessionID string)
}

type FinalizeService interface {
	// RequestStop stops intake for the session and finalizes it in the
	// background once the queue has drained. It reports false when the session
	// is already being finalized.
	RequestStop(sessionID, audioURL string) bool
	// Finalize runs the pipeline synchronously. The queue must already be drained.
	Finalize(ctx context.Context, sessionID, audioURL string) error
	// Wait blocks until every background finalization has returned.
	Wait()
}

type finalizeService struct {
	ctx         context.Context
	sessions    SessionService
	transcripts TranscriptService
	llm         llm.Provider
	queue       Drainer
	out         realtime.Broadcaster
	archive     storage.Archive
	log         *logrus.Logger

	mu         sync.Mutex
	finalizing map[string]bool
	wg         sync.WaitGroup
}

// NewFinalizeService builds the pipeline. archive may be nil.
func NewFinalizeService(ctx context.Context, sessions SessionService, transcripts TranscriptService, provider llm.Provider, queue Drainer, out realtime.Broadcaster, archive storage.Archive, log *logrus.Logger) FinalizeService {
	return &finalizeService{
		ctx:         ctx,
		sessions:    sessions,
		transcripts: transcripts,
		llm:         provider,
		queue:       queue,
		out:         out,
		archive:     archive,
		log:         log,
		finalizing:  make(map[string]bool),
	}
}

func (f *finalizeService) RequestStop(sessionID, audioURL string) bool {
	f.mu.Lock()
	if f.finalizing[sessionID] {
		f.mu.Unlock()
		f.log.WithField("session_id", sessionID).Info("stop ignored, finalization already running")
		return false
	}
	f.finalizing[sessionID] = true
	f.mu.Unlock()

	drained := f.queue.Stop(sessionID)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			delete(f.finalizing, sessionID)
			f.mu.Unlock()
		}()

		<-drained
		if err := f.Finalize(f.ctx, sessionID, audioURL); err != nil {
			f.log.WithError(err).WithField("session_id", sessionID).Error("finalize failed")
		}
	}()
	return true
}

func (f *finalizeService) Wait() { f.wg.Wait() }

func (f *finalizeService) Finalize(ctx context.Context, sessionID, audioURL string) error {
	const op = "FinalizeService.Finalize"

	log := f.log.WithField("session_id", sessionID)

	session, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		f.fail(sessionID, err)
		return err
	}

	segs, err := f.transcripts.List(ctx, sessionID)
	if err != nil {
		f.fail(sessionID, err)
		return err
	}
	transcript := JoinTranscript(segs)

	// nothing new since the stored summary: repeat the outcome without writing
	if session.Status == models.StatusCompleted && session.SegmentCount == len(segs) {
		log.Info("session already completed, re-broadcasting result")
		f.out.Broadcast(sessionID, realtime.EventProcessing, realtime.ProcessingPayload{SessionID: sessionID})
		f.out.Broadcast(sessionID, realtime.EventCompleted, realtime.CompletedPayload{
			SessionID:  sessionID,
			Summary:    session.Summary,
			Transcript: transcript,
		})
		f.queue.Release(sessionID)
		return nil
	}

	if err := f.sessions.MarkProcessing(ctx, sessionID, audioURL); err != nil {
		f.fail(sessionID, err)
		return err
	}
	f.out.Broadcast(sessionID, realtime.EventProcessing, realtime.ProcessingPayload{SessionID: sessionID})

	summary, err := f.summarize(ctx, transcript)
	if err != nil {
		log.WithError(err).Error("summarization failed")
		f.out.Broadcast(sessionID, realtime.EventSessionError, realtime.ErrorPayload{
			Message: "summarization failed",
			Code:    string(utils.CodeUnavailable),
		})
		f.queue.Release(sessionID)
		return utils.E(utils.CodeUnavailable, op, "summarization failed", err)
	}

	if err := f.sessions.Complete(ctx, sessionID, summary, len(segs)); err != nil {
		f.fail(sessionID, err)
		return err
	}

	f.out.Broadcast(sessionID, realtime.EventCompleted, realtime.CompletedPayload{
		SessionID:  sessionID,
		Summary:    summary,
		Transcript: transcript,
	})
	f.queue.Release(sessionID)
	f.transcripts.InvalidateExport(ctx, sessionID)

	log.WithField("segments", len(segs)).Info("session completed")

	f.archiveTranscript(ctx, session, summary, transcript)
	return nil
}

func (f *finalizeService) summarize(ctx context.Context, transcript string) (summary string, err error) {
	if strings.TrimSpace(transcript) == "" {
		return llm.EmptyTranscriptSummary, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summary provider panic: %v", r)
		}
	}()
	return f.llm.Summarize(ctx, transcript)
}

func (f *finalizeService) fail(sessionID string, err error) {
	f.out.Broadcast(sessionID, realtime.EventSessionError, realtime.ErrorPayload{
		Message: utils.SafeMessage(err),
		Code:    string(utils.CodeOf(err)),
	})
	f.queue.Release(sessionID)
}

func (f *finalizeService) archiveTranscript(ctx context.Context, session *models.Session, summary, transcript string) {
	if f.archive == nil {
		return
	}
	doc := &Export{
		SessionID:  session.SessionID,
		UserID:     session.UserID,
		Title:      session.Title,
		CreatedAt:  session.CreatedAt,
		Summary:    summary,
		Transcript: transcript,
	}
	path, err := f.archive.Put(ctx, storage.Transcript{
		SessionID: session.SessionID,
		UserID:    session.UserID,
		Body:      []byte(doc.Text()),
	})
	if err != nil {
		f.log.WithError(err).WithField("session_id", session.SessionID).Warn("transcript archive failed")
		return
	}
	f.log.WithFields(logrus.Fields{"session_id": session.SessionID, "path": path}).Debug("transcript archived")
}
