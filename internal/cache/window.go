package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits per key in fixed windows. The first hit of a window
// starts its expiry.
type WindowCounter struct {
	client *redis.Client
	prefix string
}

func NewWindowCounter(client *redis.Client, prefix string) *WindowCounter {
	return &WindowCounter{client: client, prefix: prefix}
}

// Hit records one hit and returns the count so far in the current window along
// with the time left until it resets.
func (w *WindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := w.prefix + key

	count, err := w.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, 0, err
	}

	remaining, err := w.client.PTTL(ctx, full).Result()
	if err != nil {
		return 0, 0, err
	}
	// a negative ttl means the window was never armed
	if count == 1 || remaining < 0 {
		if err := w.client.PExpire(ctx, full, window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = window
	}
	return count, remaining, nil
}

func (w *WindowCounter) Reset(ctx context.Context, key string) error {
	return w.client.Del(ctx, w.prefix+key).Err()
}
