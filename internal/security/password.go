package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var ErrMalformedHash = errors.New("malformed password hash")

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// dummyHash is verified against when no account matches, so both failure paths
// of a login perform one full hash.
var dummyHash = mustHash("boomscore-dummy-password")

func HashPassword(password string) ([]byte, error) {
	return HashPasswordWithParams(password, defaultParams)
}

func HashPasswordWithParams(password string, params Argon2Params) ([]byte, error) {
	if password == "" {
		return nil, errors.New("empty password")
	}
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	result := fmt.Sprintf("$argon2id$v=%d$t=%d,m=%d,p=%d$%s$%s",
		argon2.Version,
		params.Time, params.Memory, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return []byte(result), nil
}

// VerifyPassword accepts argon2id hashes produced by HashPassword and bcrypt
// hashes carried over from accounts created before the argon2id migration.
func VerifyPassword(password string, encodedHash []byte) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword(encodedHash, []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	}

	params, salt, hash, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

// VerifyDummy burns the same work as a real verification and always fails.
func VerifyDummy(password string) {
	_, _ = VerifyPassword(password, dummyHash)
}

// UnusablePassword returns a hash of random bytes nobody knows. Accounts created
// through an external identity provider carry it so the password path can never match.
func UnusablePassword() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate placeholder: %w", err)
	}
	return HashPassword(base64.RawURLEncoding.EncodeToString(buf))
}

func isBcrypt(encoded []byte) bool {
	s := string(encoded)
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func decodeArgon2(encoded []byte) (Argon2Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "t=3,m=65536,p=2", salt, hash
	parts := strings.Split(string(encoded), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &params.Time, &params.Memory, &params.Threads); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: params: %v", ErrMalformedHash, err)
	}

	salt, err := decodeB64(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	hash, err := decodeB64(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: hash: %v", ErrMalformedHash, err)
	}

	params.KeyLen = uint32(len(hash))
	params.SaltLen = uint32(len(salt))
	return params, salt, hash, nil
}

// decodeB64 tolerates both padded and unpadded standard encoding.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func mustHash(password string) []byte {
	h, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	return h
}
