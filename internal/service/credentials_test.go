package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	f.register(t, "ana@example.com", "ana", ClientInfo{})

	user, err := f.auth.Verifier().Verify(ctx, " ANA@example.com", "correct-horse-1")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)

	_, err = f.auth.Verifier().Verify(ctx, "ana@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveExternalIdentity(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	v := f.auth.Verifier()

	t.Run("creates a new account", func(t *testing.T) {
		user, created, err := v.ResolveExternalIdentity(ctx, ExternalProfile{
			Provider: "google", Subject: "g-1", Email: "Carla.Dias+bs@Example.com", EmailVerified: true,
			FirstName: "Carla", AvatarURL: "https://lh3.example/photo.jpg",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "carla.dias+bs@example.com", user.Email)
		assert.Regexp(t, regexp.MustCompile(`^carla_dias_bs_[0-9a-f]{6}$`), user.Username)
		require.NotNil(t, user.GoogleID)
		assert.Equal(t, "g-1", *user.GoogleID)
		require.NotNil(t, user.AvatarURL)

		_, err = v.Verify(ctx, user.Email, "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		again, created, err := v.ResolveExternalIdentity(ctx, ExternalProfile{Subject: "g-1", Email: "changed@example.com"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, user.ID, again.ID, "subject lookup wins over email")
	})

	t.Run("links an existing account by email", func(t *testing.T) {
		res := f.register(t, "dan@example.com", "dan", ClientInfo{})

		user, created, err := v.ResolveExternalIdentity(ctx, ExternalProfile{Subject: "g-2", Email: "DAN@example.com"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, res.User.ID, user.ID)

		stored, err := f.store.Users.FindByGoogleID(ctx, "g-2")
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, stored.ID)

		_, err = v.Verify(ctx, "dan@example.com", "correct-horse-1")
		assert.NoError(t, err, "linking keeps the password")
	})

	t.Run("rejects incomplete profiles", func(t *testing.T) {
		_, _, err := v.ResolveExternalIdentity(ctx, ExternalProfile{Email: "x@example.com"})
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = v.ResolveExternalIdentity(ctx, ExternalProfile{Subject: "g-3"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestLoginExternal(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	res, err := f.auth.LoginExternal(ctx, ExternalProfile{Provider: "google", Subject: "g-9", Email: "eva@example.com"}, ClientInfo{})
	require.NoError(t, err)

	principal, err := f.auth.Authenticate(ctx, res.AccessToken, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, principal.User.ID)
}
