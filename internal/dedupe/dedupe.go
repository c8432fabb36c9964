package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper guards against replayed inbound activities. Chat platforms
// redeliver webhooks on timeout, and replaying an answer must not
// double-advance a session.
type Deduper interface {
	// Seen atomically records the activity id and reports whether it was
	// already present.
	Seen(ctx context.Context, activityID string) (bool, error)
}

type redisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, prefix string, ttl time.Duration) Deduper {
	return &redisDeduper{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (d *redisDeduper) Seen(ctx context.Context, activityID string) (bool, error) {
	set, err := d.client.SetNX(ctx, d.prefix+activityID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe activity %s: %w", activityID, err)
	}
	return !set, nil
}

// NoopDeduper accepts every activity. Used when Redis is not configured.
type NoopDeduper struct{}

func (NoopDeduper) Seen(ctx context.Context, activityID string) (bool, error) {
	return false, nil
}
