package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/models"
)

func TestDevices_BlockedDeviceCannotSignIn(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	laptop := ClientInfo{Fingerprint: "fp-laptop", DeviceName: "Laptop", IP: "192.0.2.10"}
	phone := ClientInfo{Fingerprint: "fp-phone", UserAgent: "BoomscoreApp/3.1"}

	res := f.register(t, "ana@example.com", "ana", laptop)
	require.NotNil(t, res.Device)
	assert.Equal(t, "Laptop", res.Device.Name)
	assert.Equal(t, models.DeviceStatusUntrusted, res.Device.Status)

	again, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, laptop)
	require.NoError(t, err)
	assert.Equal(t, res.Device.ID, again.Device.ID, "same fingerprint maps to the same device")

	other, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, phone)
	require.NoError(t, err)
	assert.Equal(t, "BoomscoreApp/3.1", other.Device.Name)

	devices, err := f.accounts.ListDevices(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	blocked, err := f.accounts.BlockDevice(ctx, res.User.ID, res.Device.ID, "lost")
	require.NoError(t, err)
	assert.True(t, blocked.IsBlocked())

	for _, token := range []string{res.AccessToken, again.AccessToken} {
		_, err = f.auth.Authenticate(ctx, token, ClientInfo{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err = f.auth.Authenticate(ctx, other.AccessToken, ClientInfo{})
	assert.NoError(t, err, "sessions on other devices survive")

	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, laptop)
	assert.ErrorIs(t, err, ErrDeviceBlocked)

	_, err = f.accounts.TrustDevice(ctx, res.User.ID, res.Device.ID)
	assert.ErrorIs(t, err, ErrDeviceBlocked)
}

func TestDevices_Trust(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{Fingerprint: "fp"})
	bea := f.register(t, "bea@example.com", "bea", ClientInfo{})

	_, err := f.accounts.TrustDevice(ctx, bea.User.ID, res.Device.ID)
	assert.ErrorIs(t, err, ErrNotFound, "devices of other users are invisible")

	trusted, err := f.accounts.TrustDevice(ctx, res.User.ID, res.Device.ID)
	require.NoError(t, err)
	assert.True(t, trusted.IsTrusted())

	again, err := f.accounts.TrustDevice(ctx, res.User.ID, res.Device.ID)
	require.NoError(t, err)
	assert.Equal(t, trusted.TrustedAt, again.TrustedAt)
}

func TestRevokeSession(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})
	bea := f.register(t, "bea@example.com", "bea", ClientInfo{})

	assert.ErrorIs(t, f.accounts.RevokeSession(ctx, bea.User.ID, res.Session.ID), ErrNotFound)
	assert.ErrorIs(t, f.accounts.RevokeSession(ctx, res.User.ID, "missing"), ErrNotFound)

	require.NoError(t, f.accounts.RevokeSession(ctx, res.User.ID, res.Session.ID))
	require.NoError(t, f.accounts.RevokeSession(ctx, res.User.ID, res.Session.ID), "revoking twice is a no-op")

	_, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	sessions, err := f.accounts.ListSessions(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSetUserStatus(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, err := f.accounts.SetUserStatus(ctx, res.User.ID, "frozen")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.accounts.SetUserStatus(ctx, "missing", models.UserStatusBanned)
	assert.ErrorIs(t, err, ErrNotFound)

	user, err := f.accounts.SetUserStatus(ctx, res.User.ID, models.UserStatusBanned)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusBanned, user.Status)

	_, err = f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	session, err := f.store.Sessions.GetByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "account_banned", *session.RevokeReason)

	_, err = f.accounts.SetUserStatus(ctx, res.User.ID, models.UserStatusActive)
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, ClientInfo{})
	assert.NoError(t, err)
}

func TestSetUserRole(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, err := f.accounts.SetUserRole(ctx, res.User.ID, "root")
	assert.ErrorIs(t, err, ErrValidation)

	f.clock.Advance(time.Minute)
	user, err := f.accounts.SetUserRole(ctx, res.User.ID, models.UserRoleModerator)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleModerator, user.Role)
	assert.Equal(t, epoch.Add(time.Minute), user.UpdatedAt)
}
