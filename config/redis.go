package config

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedis accepts either a redis:// URL or a bare host:port address.
func NewRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	val := cfg.RedisURL
	if val == "" {
		return nil, errors.New("REDIS_URL is not set")
	}

	var rdb *redis.Client
	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		opt, err := redis.ParseURL(val)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = redis.NewClient(&redis.Options{Addr: val})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
