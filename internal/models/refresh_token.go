package models

import "time"

type RefreshTokenStatus string

const (
	RefreshTokenStatusActive  RefreshTokenStatus = "active"
	RefreshTokenStatusUsed    RefreshTokenStatus = "used"
	RefreshTokenStatusRevoked RefreshTokenStatus = "revoked"
	RefreshTokenStatusExpired RefreshTokenStatus = "expired"
)

// RefreshToken is a single-use renewal credential. Only the SHA-256 of the
// opaque value handed to the client is kept.
type RefreshToken struct {
	ID           string
	UserID       string
	SessionID    *string
	TokenHash    []byte
	Status       RefreshTokenStatus
	ExpiresAt    time.Time
	UsedAt       *time.Time
	RevokedAt    *time.Time
	RevokeReason *string
	CreatedAt    time.Time
}

func NewRefreshToken(id, userID string, sessionID *string, hash []byte, now time.Time, ttl time.Duration) RefreshToken {
	return RefreshToken{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: hash,
		Status:    RefreshTokenStatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (t RefreshToken) IsActiveAt(now time.Time) bool {
	return t.Status == RefreshTokenStatusActive && t.ExpiresAt.After(now)
}

func (t RefreshToken) IsActive() bool {
	return t.IsActiveAt(time.Now())
}

func (t *RefreshToken) Use(now time.Time) error {
	if !t.IsActiveAt(now) {
		return ErrInvalidTransition
	}
	t.Status = RefreshTokenStatusUsed
	t.UsedAt = &now
	return nil
}

func (t *RefreshToken) Revoke(now time.Time, reason string) error {
	if t.Status != RefreshTokenStatusActive {
		return ErrInvalidTransition
	}
	t.Status = RefreshTokenStatusRevoked
	t.RevokedAt = &now
	t.RevokeReason = &reason
	return nil
}

func (t *RefreshToken) Expire(now time.Time) error {
	if t.Status != RefreshTokenStatusActive {
		return ErrInvalidTransition
	}
	t.Status = RefreshTokenStatusExpired
	return nil
}
