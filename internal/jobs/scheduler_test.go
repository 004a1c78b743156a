package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/tasks"
)

func TestScheduleParses(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	seen := map[string]bool{}
	for _, entry := range schedule {
		_, err := parser.Parse(entry.spec)
		require.NoError(t, err, entry.spec)
		seen[entry.task] = true
	}
	assert.True(t, seen[tasks.TypeExpireSessions])
	assert.True(t, seen[tasks.TypeExpireRefreshTokens])
	assert.True(t, seen[tasks.TypeResetUsage])
}

func TestEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewScheduler(client, "identity:maintenance", zerolog.Nop())
	s.enqueue(tasks.TypeExpireSessions)

	msgs, err := client.XRange(context.Background(), "identity:maintenance", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, tasks.TypeExpireSessions, msgs[0].Values["type"])

	assert.NoError(t, Enqueue(context.Background(), nil, "x", "y"), "no queue is a no-op")
}

func TestStartWithoutQueue(t *testing.T) {
	s := NewScheduler(nil, "identity:maintenance", zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop(time.Second)
}
