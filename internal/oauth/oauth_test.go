package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"boomscore/identity/internal/config"
)

func TestStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStateStore(client)
	ctx := context.Background()

	state, err := store.Issue(ctx, "/dashboard")
	require.NoError(t, err)

	redirect, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", redirect)

	_, err = store.Consume(ctx, state)
	assert.ErrorIs(t, err, ErrInvalidState, "state is single use")

	expired, err := store.Issue(ctx, "/")
	require.NoError(t, err)
	mr.FastForward(stateTTL)
	_, err = store.Consume(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = store.Consume(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGoogleProvider_Disabled(t *testing.T) {
	p := NewGoogleProvider(config.GoogleConfig{}, zerolog.Nop())
	assert.False(t, p.Enabled())

	_, err := p.AuthCodeURL("s")
	assert.ErrorIs(t, err, ErrProviderDisabled)
	_, err = p.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrProviderDisabled)
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(config.GoogleConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		CallbackURL:  "https://api.example/auth/google/callback",
	}, zerolog.Nop())

	raw, err := p.AuthCodeURL("xyz")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "https://api.example/auth/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
}

func newFakeGoogle(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"expires_in":   int((time.Hour).Seconds()),
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func providerFor(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(config.GoogleConfig{ClientID: "cid", ClientSecret: "secret"}, zerolog.Nop()).
		WithEndpoints(oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, srv.URL+"/userinfo")
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{
		"sub": "g-42", "email": "ana@example.com", "email_verified": true,
		"given_name": "Ana", "family_name": "Silva", "picture": "https://lh3.example/a.jpg",
	})
	p := providerFor(srv)

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "g-42", profile.Subject)
	assert.Equal(t, "Ana", profile.GivenName)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)

	_, err = p.Exchange(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGoogleProvider_UnverifiedEmail(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"sub": "g-7", "email": "x@example.com", "email_verified": false})

	_, err := providerFor(srv).Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}
