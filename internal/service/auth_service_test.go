package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/models"
)

func TestRegister(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	res := f.register(t, "  Ana@Example.com ", "Ana_1", ClientInfo{IP: "198.51.100.7"})

	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "ana_1", res.User.Username)
	assert.Equal(t, models.UserRoleUser, res.User.Role)
	assert.Equal(t, models.UserStatusActive, res.User.Status)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, epoch.Add(15*time.Minute), res.AccessExpiresAt)
	require.NotNil(t, res.User.LastLoginAt)

	principal, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, principal.User.ID)
	require.NotNil(t, principal.Session)
	assert.Equal(t, res.Session.ID, principal.Session.ID)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, err := f.auth.Register(ctx, RegisterInput{Email: "ANA@example.com", Username: "other", Password: "pass-word-2"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	_, err = f.auth.Register(ctx, RegisterInput{Email: "bea@example.com", Username: "ANA", Password: "pass-word-2"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"bad email":        {Email: "not-an-email", Username: "ana", Password: "password1"},
		"empty username":   {Email: "a@example.com", Username: " ", Password: "password1"},
		"long username":    {Email: "a@example.com", Username: strings.Repeat("a", 31), Password: "password1"},
		"illegal username": {Email: "a@example.com", Username: "ana-b", Password: "password1"},
		"short password":   {Email: "a@example.com", Username: "ana", Password: "pa1"},
		"no digit":         {Email: "a@example.com", Username: "ana", Password: "password"},
		"no letter":        {Email: "a@example.com", Username: "ana", Password: "12345678"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, input, ClientInfo{})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, unknown := f.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct-horse-1"}, ClientInfo{})
	_, wrong := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong-horse-1"}, ClientInfo{})

	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, err := f.accounts.SetUserStatus(ctx, res.User.ID, models.UserStatusSuspended)
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong-horse-1"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "status is only revealed after a correct password")

	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	require.NoError(t, f.auth.Logout(ctx, res.AccessToken, ""))

	_, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	session, err := f.store.Sessions.GetByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRevoked, session.Status)
	assert.Equal(t, RevokeReasonLogout, *session.RevokeReason)

	_, err = f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized, "refresh tokens die with their session")

	assert.NoError(t, f.auth.Logout(ctx, res.AccessToken, ""), "logout is idempotent")
	assert.NoError(t, f.auth.Logout(ctx, "", ""), "anonymous logout succeeds")
	assert.NoError(t, f.auth.Logout(ctx, "garbage", "garbage"))
}

func TestLogout_ByRefreshTokenWhenAccessExpired(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	f.clock.Advance(time.Hour)
	require.NoError(t, f.auth.Logout(ctx, res.AccessToken, res.RefreshToken))

	session, err := f.store.Sessions.GetByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRevoked, session.Status)
}

func TestAuthenticate_Stateless(t *testing.T) {
	opts := defaultOptions()
	opts.SessionBinding = false
	f := newFixture(t, opts)
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	require.NoError(t, f.auth.Logout(ctx, res.AccessToken, ""))

	principal, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	require.NoError(t, err, "without session binding a token stays valid until it expires")
	assert.Nil(t, principal.Session)

	f.clock.Advance(15 * time.Minute)
	_, err = f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized, "expiry equal to now is expired")
}

func TestAuthenticate_RejectsTamperedToken(t *testing.T) {
	f := newFixture(t, defaultOptions())
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	_, err := f.auth.Authenticate(context.Background(), res.AccessToken+"x", ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_TouchesActivity(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	f.clock.Advance(2 * time.Minute)
	_, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{IP: "203.0.113.9"})
	require.NoError(t, err)

	session, err := f.store.Sessions.GetByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(2*time.Minute), session.LastActivityAt)
	assert.Equal(t, "203.0.113.9", session.IPAddress)
}

func TestRefresh_Rotation(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	f.clock.Advance(20 * time.Minute)
	_, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	require.ErrorIs(t, err, ErrUnauthorized)

	rotated, err := f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, res.Session.ID, rotated.Session.ID)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), rotated.Session.ExpiresAt)

	_, err = f.auth.Authenticate(ctx, rotated.AccessToken, ClientInfo{})
	require.NoError(t, err)

	old, err := f.store.RefreshTokens.FindByHash(ctx, hashOf(res.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, models.RefreshTokenStatusUsed, old.Status)
}

func TestRefresh_ReuseRevokesEverything(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})
	other, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, ClientInfo{})
	require.NoError(t, err)

	rotated, err := f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrRefreshReuse)
	assert.ErrorIs(t, err, ErrUnauthorized)

	for _, token := range []string{rotated.AccessToken, other.AccessToken} {
		_, err = f.auth.Authenticate(ctx, token, ClientInfo{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err = f.auth.Refresh(ctx, rotated.RefreshToken, ClientInfo{})
	assert.Error(t, err)
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	res := f.register(t, "ana@example.com", "ana", ClientInfo{})

	f.clock.Advance(7 * 24 * time.Hour)
	_, err := f.auth.Refresh(ctx, res.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.Is(err, ErrRefreshReuse))

	tok, err := f.store.RefreshTokens.FindByHash(ctx, hashOf(res.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, models.RefreshTokenStatusExpired, tok.Status)

	_, err = f.auth.Refresh(ctx, "", ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.auth.Refresh(ctx, "unknown", ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionLimit(t *testing.T) {
	opts := defaultOptions()
	opts.MaxSessions = 2
	f := newFixture(t, opts)
	ctx := context.Background()
	first := f.register(t, "ana@example.com", "ana", ClientInfo{})

	var last AuthResult
	for i := 0; i < 2; i++ {
		f.clock.Advance(time.Minute)
		var err error
		last, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correct-horse-1"}, ClientInfo{})
		require.NoError(t, err)
	}

	sessions, err := f.accounts.ListSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	revoked, err := f.store.Sessions.GetByID(ctx, first.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRevoked, revoked.Status)
	assert.Equal(t, RevokeReasonSessionLimit, *revoked.RevokeReason)

	_, err = f.auth.Authenticate(ctx, last.AccessToken, ClientInfo{})
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	ana := f.register(t, "ana@example.com", "ana", ClientInfo{})
	f.register(t, "bea@example.com", "bea", ClientInfo{})

	first, tz := "Ana", "UTC"
	user, err := f.auth.UpdateProfile(ctx, ana.User.ID, ProfileInput{FirstName: &first, Timezone: &tz})
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.FirstName)

	taken := "BEA"
	_, err = f.auth.UpdateProfile(ctx, ana.User.ID, ProfileInput{Username: &taken})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	bad := "Nowhere/Atlantis"
	_, err = f.auth.UpdateProfile(ctx, ana.User.ID, ProfileInput{Timezone: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.auth.UpdateProfile(ctx, "missing", ProfileInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}
