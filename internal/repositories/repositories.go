// Package repositories declares the persistence boundary for sessions and
// transcript segments. Implementations live in the mongo, postgres and memory
// subpackages.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/scribe/internal/models"
)

// ErrDuplicate is returned by Create when the session id is already taken.
var ErrDuplicate = errors.New("duplicate")

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	SetStatus(ctx context.Context, sessionID string, status models.Status) error
	MarkProcessing(ctx context.Context, sessionID string, endedAt time.Time, audioURL string) error
	Complete(ctx context.Context, sessionID, summary string, segmentCount int, completedAt time.Time) error
}

type SegmentRepository interface {
	Insert(ctx context.Context, seg *models.TranscriptSegment) error
	// ListBySession returns every segment of the session ordered by creation.
	ListBySession(ctx context.Context, sessionID string) ([]models.TranscriptSegment, error)
}
