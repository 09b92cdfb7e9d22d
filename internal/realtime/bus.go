package realtime

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Bus carries broadcast frames between server instances. Run delivers every
// frame published by any instance to the local hub.
type Bus interface {
	Publish(ctx context.Context, sessionID string, frame []byte) error
	Run(ctx context.Context, deliver func(sessionID string, frame []byte)) error
}

const (
	channelPrefix = "session:"
	channelSuffix = ":events"
)

func sessionChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionFromChannel(ch string) (string, bool) {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(ch, channelPrefix), channelSuffix)
	return id, id != ""
}

// RedisBus fans broadcasts out through Redis pub/sub. Redis preserves publish
// order per channel, which keeps the per-session ordering guarantee.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, sessionID string, frame []byte) error {
	return b.rdb.Publish(ctx, sessionChannel(sessionID), frame).Err()
}

func (b *RedisBus) Run(ctx context.Context, deliver func(sessionID string, frame []byte)) error {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if id, ok := sessionFromChannel(msg.Channel); ok {
				deliver(id, []byte(msg.Payload))
			}
		}
	}
}
