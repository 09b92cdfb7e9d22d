package postgres

import (
	"context"

	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
	"gorm.io/gorm"
)

type segmentRepo struct {
	db *gorm.DB
}

func NewSegmentRepo(db *gorm.DB) repositories.SegmentRepository {
	return &segmentRepo{db: db}
}

// AutoMigrate creates the transcript_segments table and its ordering index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.TranscriptSegment{})
}

func (r *segmentRepo) Insert(ctx context.Context, seg *models.TranscriptSegment) error {
	return r.db.WithContext(ctx).Create(seg).Error
}

func (r *segmentRepo) ListBySession(ctx context.Context, sessionID string) ([]models.TranscriptSegment, error) {
	var rows []models.TranscriptSegment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}
