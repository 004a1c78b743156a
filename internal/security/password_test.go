package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Abcd1234!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hash), "$argon2id$v=19$t=3,m=65536,p=2$"))

	ok, err := VerifyPassword("Abcd1234!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("abcd1234!", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("same-password-1")
	require.NoError(t, err)
	b, err := HashPassword("same-password-1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Password1!"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := VerifyPassword("Password1!", legacy)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("Password2!", legacy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$t=3,m=65536,p=2$onlysalt",
		"$argon2id$v=18$t=3,m=65536,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
	} {
		ok, err := VerifyPassword("x", []byte(encoded))
		assert.False(t, ok, encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}

func TestUnusablePassword(t *testing.T) {
	hash, err := UnusablePassword()
	require.NoError(t, err)

	for _, guess := range []string{"", "password", "Abcd1234!"} {
		ok, _ := VerifyPassword(guess, hash)
		assert.False(t, ok)
	}
}
