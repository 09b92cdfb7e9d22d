// Package cache stores rendered transcript exports between downloads.
package cache

import (
	"context"
	"time"
)

// Cache is a JSON value store with per-key expiry.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ExportKey is the cache key of a session's rendered transcript export.
func ExportKey(sessionID string) string {
	return "scribe:export:" + sessionID
}
