package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/models"
	"boomscore/identity/internal/repository"
)

var now = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func TestUsers_Uniqueness(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Users.Create(ctx, models.User{ID: "u1", Email: "Ana@Example.com", Username: "ana"}))

	err := store.Users.Create(ctx, models.User{ID: "u2", Email: "ana@example.com", Username: "other"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = store.Users.Create(ctx, models.User{ID: "u3", Email: "b@example.com", Username: "ANA"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := store.Users.FindByEmail(ctx, "ANA@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = store.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestRefreshTokens_MarkUsedIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := New()
	tok := models.NewRefreshToken("r1", "u1", nil, []byte("hash"), now, time.Hour)
	require.NoError(t, store.RefreshTokens.Create(ctx, tok))

	require.NoError(t, store.RefreshTokens.MarkUsed(ctx, "r1", now))
	assert.ErrorIs(t, store.RefreshTokens.MarkUsed(ctx, "r1", now), repository.ErrRefreshTokenNotActive)

	got, err := store.RefreshTokens.FindByHash(ctx, []byte("hash"))
	require.NoError(t, err)
	assert.Equal(t, models.RefreshTokenStatusUsed, got.Status)
}

func TestSessions_ExpireAndRevoke(t *testing.T) {
	ctx := context.Background()
	store := New()
	device := "d1"
	require.NoError(t, store.Sessions.Create(ctx, models.NewSession("s1", "u1", &device, "t1", now, time.Minute)))
	require.NoError(t, store.Sessions.Create(ctx, models.NewSession("s2", "u1", nil, "t2", now, time.Hour)))

	assert.ErrorIs(t, store.Sessions.Create(ctx, models.NewSession("s3", "u1", nil, "t2", now, time.Hour)), repository.ErrConflict)

	n, err := store.Sessions.ExpireStale(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.Sessions.RevokeByDevice(ctx, "d1", "device_blocked", now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "expired sessions are not revoked")

	n, err = store.Sessions.RevokeByUser(ctx, "u1", "account_suspended", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	s2, err := store.Sessions.GetByToken(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRevoked, s2.Status)
}

func TestUsers_ResetUsage(t *testing.T) {
	ctx := context.Background()
	store := New()
	period := models.UsagePeriodStart(now)
	require.NoError(t, store.Users.Create(ctx, models.User{ID: "u1", Email: "a@x.io", Username: "a", PredictionsUsed: 4, UsageResetAt: period.AddDate(0, -1, 0)}))
	require.NoError(t, store.Users.Create(ctx, models.User{ID: "u2", Email: "b@x.io", Username: "b", PredictionsUsed: 2, UsageResetAt: period}))

	n, err := store.Users.ResetUsage(ctx, period)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u1, _ := store.Users.GetByID(ctx, "u1")
	u2, _ := store.Users.GetByID(ctx, "u2")
	assert.Zero(t, u1.PredictionsUsed)
	assert.Equal(t, 2, u2.PredictionsUsed)
}
