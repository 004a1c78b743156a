package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/memstore"
	"boomscore/identity/internal/models"
)

var t0 = time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC)

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	require.NoError(t, store.Users.Create(ctx, models.User{
		ID: "u1", Email: "a@example.com", Username: "alpha",
		Role: models.UserRoleUser, Status: models.UserStatusActive,
		PredictionsUsed: 7, ChatMessagesUsed: 3,
		UsageResetAt: models.UsagePeriodStart(t0),
	}))
	require.NoError(t, store.Sessions.Create(ctx, models.NewSession("s1", "u1", nil, "tok-1", t0, time.Hour)))
	require.NoError(t, store.RefreshTokens.Create(ctx, models.NewRefreshToken("r1", "u1", nil, []byte{1}, t0, time.Hour)))

	clock := t0.Add(2 * time.Hour)
	p := NewProcessor(store.Sessions, store.RefreshTokens, store.Users, zerolog.Nop()).
		WithClock(func() time.Time { return clock })

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "1-0", Values: map[string]any{"type": TypeExpireSessions}}))
	s, err := store.Sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusExpired, s.Status)

	require.NoError(t, p.Run(ctx, TypeExpireRefreshTokens))
	rt, err := store.RefreshTokens.FindByHash(ctx, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, models.RefreshTokenStatusExpired, rt.Status)

	require.NoError(t, p.Run(ctx, TypeResetUsage))
	u, err := store.Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, u.PredictionsUsed)
	assert.Zero(t, u.ChatMessagesUsed)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), u.UsageResetAt)

	require.NoError(t, p.Run(ctx, "rebuild_index"), "unknown tasks are dropped")
}
