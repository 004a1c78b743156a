package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/memstore"
	"boomscore/identity/internal/security"
)

var epoch = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store    *memstore.Store
	auth     *AuthService
	accounts *AccountService
	clock    *clock
}

func newFixture(t *testing.T, opts AuthOptions) *fixture {
	t.Helper()
	store := memstore.New()
	stores := Stores{
		Users:         store.Users,
		Devices:       store.Devices,
		Sessions:      store.Sessions,
		RefreshTokens: store.RefreshTokens,
	}
	c := &clock{t: epoch}
	issuer := security.NewTokenIssuer("test-secret-test-secret-test-secret", 15*time.Minute)
	auth := NewAuthService(stores, issuer, nil, opts, zerolog.Nop()).WithClock(c.Now)
	accounts := NewAccountService(stores, nil, zerolog.Nop()).WithClock(c.Now)
	return &fixture{store: store, auth: auth, accounts: accounts, clock: c}
}

func defaultOptions() AuthOptions {
	return AuthOptions{RefreshTTL: 7 * 24 * time.Hour, MaxSessions: 5, SessionBinding: true}
}

func (f *fixture) register(t *testing.T, email, username string, client ClientInfo) AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		Password: "correct-horse-1",
	}, client)
	require.NoError(t, err)
	return res
}

type memAvatarStore struct {
	objects map[string][]byte
}

func (m *memAvatarStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = bytes.Clone(data)
	return "https://cdn.example/" + key, nil
}

func hashOf(token string) []byte {
	return security.HashOpaqueToken(token)
}
