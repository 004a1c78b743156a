package service

import (
	"context"
	"time"

	"boomscore/identity/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

type DeviceStore interface {
	Create(ctx context.Context, device models.Device) error
	GetByID(ctx context.Context, id string) (models.Device, error)
	FindByFingerprint(ctx context.Context, userID string, fingerprint string) (models.Device, error)
	ListByUser(ctx context.Context, userID string) ([]models.Device, error)
	Update(ctx context.Context, device models.Device) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	GetByToken(ctx context.Context, token string) (models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Update(ctx context.Context, session models.Session) error
	RevokeByUser(ctx context.Context, userID string, reason string, now time.Time) (int64, error)
	RevokeByDevice(ctx context.Context, deviceID string, reason string, now time.Time) (int64, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	FindByHash(ctx context.Context, hash []byte) (models.RefreshToken, error)
	MarkUsed(ctx context.Context, id string, now time.Time) error
	Update(ctx context.Context, token models.RefreshToken) error
	RevokeBySession(ctx context.Context, sessionID string, reason string, now time.Time) (int64, error)
	RevokeByUser(ctx context.Context, userID string, reason string, now time.Time) (int64, error)
}

// Stores bundles the persistence the identity services need. Both the postgres
// repositories and memstore satisfy it.
type Stores struct {
	Users         UserStore
	Devices       DeviceStore
	Sessions      SessionStore
	RefreshTokens RefreshTokenStore
}
