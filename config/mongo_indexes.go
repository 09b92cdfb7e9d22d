package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SessionsCollection = "sessions"

// server codes for an existing index whose options or keys differ
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

func sessionIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("uniq_session_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_user_created"),
		},
	}
}

func isIndexConflict(err error) bool {
	var ce mongo.CommandError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == codeIndexOptionsConflict || ce.Code == codeIndexKeySpecsConflict
}

// EnsureMongoIndexes creates the session indexes one by one. An index left
// behind with the same name but other options is dropped and rebuilt.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	idx := db.Collection(SessionsCollection).Indexes()
	for _, model := range sessionIndexes() {
		name := *model.Options.Name
		_, err := idx.CreateOne(ctx, model)
		if err == nil {
			continue
		}
		if !isIndexConflict(err) {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		if _, err := idx.DropOne(ctx, name); err != nil {
			return fmt.Errorf("drop stale index %s: %w", name, err)
		}
		if _, err := idx.CreateOne(ctx, model); err != nil {
			return fmt.Errorf("recreate index %s: %w", name, err)
		}
	}
	return nil
}
