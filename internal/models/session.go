package models

import "time"

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
	SessionStatusRevoked SessionStatus = "revoked"
)

type Session struct {
	ID             string
	UserID         string
	DeviceID       *string
	Token          string
	Status         SessionStatus
	ExpiresAt      time.Time
	IPAddress      string
	UserAgent      string
	LastActivityAt time.Time
	RevokedAt      *time.Time
	RevokeReason   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewSession(id, userID string, deviceID *string, token string, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:             id,
		UserID:         userID,
		DeviceID:       deviceID,
		Token:          token,
		Status:         SessionStatusActive,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActiveAt is derived on every call: the stored status alone is not enough,
// an active row whose expiry has passed is no longer usable.
func (s Session) IsActiveAt(now time.Time) bool {
	return s.Status == SessionStatusActive && s.ExpiresAt.After(now)
}

func (s Session) IsActive() bool {
	return s.IsActiveAt(time.Now())
}

func (s *Session) UpdateActivity(now time.Time, ip, userAgent string) {
	s.LastActivityAt = now
	if ip != "" {
		s.IPAddress = ip
	}
	if userAgent != "" {
		s.UserAgent = userAgent
	}
	s.UpdatedAt = now
}

// Extend resets the expiry to now+d. It reports false and leaves the session
// untouched when the session is not active.
func (s *Session) Extend(now time.Time, d time.Duration) bool {
	if !s.IsActiveAt(now) {
		return false
	}
	s.ExpiresAt = now.Add(d)
	s.UpdatedAt = now
	return true
}

func (s *Session) Revoke(now time.Time, reason string) error {
	if s.Status != SessionStatusActive {
		return ErrInvalidTransition
	}
	s.Status = SessionStatusRevoked
	s.RevokedAt = &now
	s.RevokeReason = &reason
	s.UpdatedAt = now
	return nil
}

func (s *Session) Expire(now time.Time) error {
	if s.Status != SessionStatusActive {
		return ErrInvalidTransition
	}
	s.Status = SessionStatusExpired
	s.UpdatedAt = now
	return nil
}
