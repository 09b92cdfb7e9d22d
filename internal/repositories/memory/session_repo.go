// Package memory keeps sessions and segments in process memory. It backs
// development runs without MONGO_URI/POSTGRES_URI and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
	"github.com/yoockh/scribe/internal/utils"
)

type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]models.Session)}
}

var _ repositories.SessionRepository = (*SessionRepo)(nil)

func (r *SessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.SessionID]; ok {
		return repositories.ErrDuplicate
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.sessions[s.SessionID] = *s
	return nil
}

func (r *SessionRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (r *SessionRepo) SetStatus(_ context.Context, sessionID string, status models.Status) error {
	return r.update(sessionID, func(s *models.Session) { s.Status = status })
}

func (r *SessionRepo) MarkProcessing(_ context.Context, sessionID string, endedAt time.Time, audioURL string) error {
	return r.update(sessionID, func(s *models.Session) {
		ended := endedAt.UTC()
		s.Status = models.StatusProcessing
		s.EndedAt = &ended
		if audioURL != "" {
			s.AudioURL = audioURL
		}
	})
}

func (r *SessionRepo) Complete(_ context.Context, sessionID, summary string, segmentCount int, completedAt time.Time) error {
	return r.update(sessionID, func(s *models.Session) {
		done := completedAt.UTC()
		s.Status = models.StatusCompleted
		s.Summary = summary
		s.SegmentCount = segmentCount
		s.CompletedAt = &done
	})
}

func (r *SessionRepo) update(sessionID string, fn func(*models.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	fn(&s)
	r.sessions[sessionID] = s
	return nil
}
