package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryKeyPrefix = "persona:delivery:"

// DefaultWindow bounds how long delivery IDs are remembered. Provider retry
// schedules top out well inside a day.
const DefaultWindow = 24 * time.Hour

// RedisDeduper shares the delivery window across instances.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
}

// NewRedis builds a Redis-backed deduper. A non-positive window falls back to
// DefaultWindow.
func NewRedis(client *redis.Client, window time.Duration) *RedisDeduper {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisDeduper{client: client, window: window}
}

// Seen reports whether the delivery was already marked.
func (d *RedisDeduper) Seen(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, deliveryKeyPrefix+deliveryID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the delivery with a TTL of the window.
func (d *RedisDeduper) Mark(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}
	return d.client.Set(ctx, deliveryKeyPrefix+deliveryID, "1", d.window).Err()
}
