package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counter := NewWindowCounter(client, "rl:")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, ttl, err := counter.Hit(ctx, "login:198.51.100.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	}

	mr.FastForward(time.Minute)
	n, _, err := counter.Hit(ctx, "login:198.51.100.1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "a new window starts after expiry")

	require.NoError(t, counter.Reset(ctx, "login:198.51.100.1"))
	assert.False(t, mr.Exists("rl:login:198.51.100.1"))
}
