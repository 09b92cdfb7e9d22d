package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
	"github.com/yoockh/scribe/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) repositories.SessionRepository {
	return &sessionRepo{col: db.Collection(config.SessionsCollection)}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID string, status models.Status) error {
	return r.update(ctx, sessionID, bson.M{"status": status})
}

func (r *sessionRepo) MarkProcessing(ctx context.Context, sessionID string, endedAt time.Time, audioURL string) error {
	set := bson.M{
		"status":   models.StatusProcessing,
		"ended_at": endedAt.UTC(),
	}
	if audioURL != "" {
		set["audio_url"] = audioURL
	}
	return r.update(ctx, sessionID, set)
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID, summary string, segmentCount int, completedAt time.Time) error {
	return r.update(ctx, sessionID, bson.M{
		"status":        models.StatusCompleted,
		"summary":       summary,
		"segment_count": segmentCount,
		"completed_at":  completedAt.UTC(),
	})
}

func (r *sessionRepo) update(ctx context.Context, sessionID string, set bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
