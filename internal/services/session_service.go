package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
	"github.com/yoockh/scribe/internal/utils"
)

type SessionService interface {
	Start(ctx context.Context, userID, title string) (*models.Session, error)
	// Join makes sure the session exists and is owned by userID, moving it to
	// RECORDING unless it is already being finalized or finished.
	Join(ctx context.Context, sessionID, userID string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	// GetOwned is Get that reports NOT_FOUND for sessions of other users.
	GetOwned(ctx context.Context, sessionID, userID string) (*models.Session, error)
	MarkProcessing(ctx context.Context, sessionID, audioURL string) error
	Complete(ctx context.Context, sessionID, summary string, segmentCount int) error
}

type sessionService struct {
	sessions repositories.SessionRepository
	now      func() time.Time
}

func NewSessionService(sessions repositories.SessionRepository) SessionService {
	return &sessionService{sessions: sessions, now: func() time.Time { return time.Now().UTC() }}
}

func (s *sessionService) Start(ctx context.Context, userID, title string) (*models.Session, error) {
	const op = "SessionService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultSessionTitle
	}

	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    models.StatusIdle,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Join(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	const op = "SessionService.Join"

	if sessionID == "" || userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "sessionId and userId are required", nil)
	}

	existing, err := s.sessions.GetBySessionID(ctx, sessionID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		created := &models.Session{
			SessionID: sessionID,
			UserID:    userID,
			Title:     models.DefaultSessionTitle,
			Status:    models.StatusRecording,
			CreatedAt: s.now(),
		}
		err := s.sessions.Create(ctx, created)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
		}
		// lost a creation race; fall through with the winner's row
		if existing, err = s.sessions.GetBySessionID(ctx, sessionID); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
		}
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	if existing.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
	}

	switch existing.Status {
	case models.StatusRecording, models.StatusProcessing, models.StatusCompleted:
		return existing, nil
	}
	if err := s.sessions.SetStatus(ctx, sessionID, models.StatusRecording); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update session status", err)
	}
	existing.Status = models.StatusRecording
	return existing, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) GetOwned(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	const op = "SessionService.GetOwned"

	out, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if out.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return out, nil
}

func (s *sessionService) MarkProcessing(ctx context.Context, sessionID, audioURL string) error {
	const op = "SessionService.MarkProcessing"

	if err := s.sessions.MarkProcessing(ctx, sessionID, s.now(), audioURL); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to mark session processing", err)
	}
	return nil
}

func (s *sessionService) Complete(ctx context.Context, sessionID, summary string, segmentCount int) error {
	const op = "SessionService.Complete"

	if err := s.sessions.Complete(ctx, sessionID, summary, segmentCount, s.now()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to complete session", err)
	}
	return nil
}
