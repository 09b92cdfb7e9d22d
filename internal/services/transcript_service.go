package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
	"gorm.io/datatypes"
)

const noSummary = "No summary available."

// Export is the downloadable rendering of a session.
type Export struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	Summary    string    `json:"summary"`
	Transcript string    `json:"transcript"`
}

func (e *Export) Filename() string {
	return storage.TranscriptFilename(e.SessionID)
}

func (e *Export) Text() string {
	summary := e.Summary
	if summary == "" {
		summary = noSummary
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", e.Title)
	fmt.Fprintf(&b, "Date: %s\n\n", e.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Summary:\n%s\n\n", summary)
	fmt.Fprintf(&b, "Transcript:\n%s", e.Transcript)
	return b.String()
}

// JoinTranscript concatenates segment texts in order, one per line.
func JoinTranscript(segs []models.TranscriptSegment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}

type TranscriptService interface {
	AppendSegment(ctx context.Context, chunk models.Chunk, text string, tokens []string) (*models.TranscriptSegment, error)
	List(ctx context.Context, sessionID string) ([]models.TranscriptSegment, error)
	Export(ctx context.Context, sessionID, userID string) (*Export, error)
	InvalidateExport(ctx context.Context, sessionID string)
}

type transcriptService struct {
	segments repositories.SegmentRepository
	sessions SessionService
	cache    cache.Cache
	ttl      time.Duration
	log      *logrus.Logger
}

// NewTranscriptService builds the service. A nil cache disables export caching.
func NewTranscriptService(segments repositories.SegmentRepository, sessions SessionService, c cache.Cache, ttl time.Duration, log *logrus.Logger) TranscriptService {
	return &transcriptService{segments: segments, sessions: sessions, cache: c, ttl: ttl, log: log}
}

func (s *transcriptService) AppendSegment(ctx context.Context, chunk models.Chunk, text string, tokens []string) (*models.TranscriptSegment, error) {
	const op = "TranscriptService.AppendSegment"

	if chunk.SessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	md, err := json.Marshal(models.SegmentMetadata{Start: chunk.Start, End: chunk.End, MimeType: chunk.MimeType})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode segment metadata", err)
	}

	seg := &models.TranscriptSegment{
		ID:        uuid.NewString(),
		SessionID: chunk.SessionID,
		Seq:       chunk.Seq,
		Text:      text,
		Tokens:    tokens,
		Metadata:  datatypes.JSON(md),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.segments.Insert(ctx, seg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save segment", err)
	}
	return seg, nil
}

func (s *transcriptService) List(ctx context.Context, sessionID string) ([]models.TranscriptSegment, error) {
	const op = "TranscriptService.List"

	out, err := s.segments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list segments", err)
	}
	return out, nil
}

func (s *transcriptService) Export(ctx context.Context, sessionID, userID string) (*Export, error) {
	const op = "TranscriptService.Export"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	key := cache.ExportKey(sessionID)
	if s.cache != nil {
		var cached Export
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("export cache read failed")
		}
		if hit {
			if cached.UserID != userID {
				return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
			}
			return &cached, nil
		}
	}

	session, err := s.sessions.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	segs, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := &Export{
		SessionID:  session.SessionID,
		UserID:     session.UserID,
		Title:      session.Title,
		CreatedAt:  session.CreatedAt,
		Summary:    session.Summary,
		Transcript: JoinTranscript(segs),
	}

	// only finished sessions are stable enough to cache
	if s.cache != nil && session.Status == models.StatusCompleted && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("export cache write failed")
		}
	}
	return out, nil
}

func (s *transcriptService) InvalidateExport(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cache.ExportKey(sessionID)); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("export cache invalidation failed")
	}
}
