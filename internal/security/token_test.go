package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boomscore/identity/internal/models"
)

const testSecret = "test-secret-key-for-token-tests"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer := NewTokenIssuer(testSecret, 15*time.Minute).WithClock(fixedClock(issuedAt))
	user := models.User{ID: "user-1", Email: "a@x.com"}

	token, exp, err := issuer.Issue(user, "session-token")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(15*time.Minute), exp)

	verifier := issuer.WithClock(fixedClock(issuedAt.Add(14 * time.Minute)))
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "session-token", claims.SessionToken())
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer := NewTokenIssuer(testSecret, 15*time.Minute).WithClock(fixedClock(issuedAt))

	token, exp, err := issuer.Issue(models.User{ID: "u", Email: "u@x.com"}, "s")
	require.NoError(t, err)

	_, err = issuer.WithClock(fixedClock(exp)).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expiry equal to now is expired")

	_, err = issuer.WithClock(fixedClock(exp.Add(time.Second))).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Minute)
	token, _, err := issuer.Issue(models.User{ID: "u", Email: "u@x.com"}, "s")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenIssuer("another-secret", time.Minute).Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"", "abc", "a.b.c", strings.Repeat("x", 300)} {
			_, err := issuer.Verify(s)
			assert.ErrorIs(t, err, ErrInvalidToken)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		parts[1] = parts[1][:len(parts[1])-2] + "AA"
		_, err := issuer.Verify(strings.Join(parts, "."))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Verify(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, hashA, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	b, _, err := GenerateOpaqueToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.Equal(t, hashA, HashOpaqueToken(a))
}
