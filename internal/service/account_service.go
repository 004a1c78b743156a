package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"boomscore/identity/internal/models"
	"boomscore/identity/internal/observe"
	"boomscore/identity/internal/repository"
)

// AccountService covers what a signed in user (or an admin) does with the
// sessions, devices and standing of an account.
type AccountService struct {
	stores   Stores
	recorder observe.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

func NewAccountService(stores Stores, recorder observe.Recorder, log zerolog.Logger) *AccountService {
	if recorder == nil {
		recorder = observe.Nop()
	}
	return &AccountService{stores: stores, recorder: recorder, log: log, now: time.Now}
}

func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// ListSessions returns the user's sessions that are still usable, most recently
// active first.
func (s *AccountService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.stores.Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.IsActiveAt(now) {
			active = append(active, session)
		}
	}
	return active, nil
}

func (s *AccountService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.stores.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotFound
		}
		return err
	}
	if session.UserID != userID {
		return ErrNotFound
	}
	return revokeSession(ctx, s.stores, s.recorder, session, RevokeReasonUserRevoked, s.now())
}

func (s *AccountService) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	return s.stores.Devices.ListByUser(ctx, userID)
}

func (s *AccountService) ownedDevice(ctx context.Context, userID, deviceID string) (models.Device, error) {
	device, err := s.stores.Devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return models.Device{}, ErrNotFound
		}
		return models.Device{}, err
	}
	if device.UserID != userID {
		return models.Device{}, ErrNotFound
	}
	return device, nil
}

func (s *AccountService) TrustDevice(ctx context.Context, userID, deviceID string) (models.Device, error) {
	device, err := s.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return models.Device{}, err
	}
	wasTrusted := device.IsTrusted()
	if err := device.Trust(s.now()); err != nil {
		return models.Device{}, err
	}
	if wasTrusted {
		return device, nil
	}
	if err := s.stores.Devices.Update(ctx, device); err != nil {
		return models.Device{}, fmt.Errorf("trust device: %w", err)
	}
	s.recorder.Record(ctx, observe.Event{Kind: observe.EventDeviceTrusted, UserID: userID, DeviceID: device.ID})
	return device, nil
}

// BlockDevice blocks the device for good and ends every session opened from it.
func (s *AccountService) BlockDevice(ctx context.Context, userID, deviceID, reason string) (models.Device, error) {
	device, err := s.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return models.Device{}, err
	}
	if reason == "" {
		reason = "blocked by owner"
	}
	now := s.now()
	if device.IsBlocked() {
		return device, nil
	}
	if err := device.Block(now, reason); err != nil {
		return models.Device{}, err
	}
	if err := s.stores.Devices.Update(ctx, device); err != nil {
		return models.Device{}, fmt.Errorf("block device: %w", err)
	}
	revoked, err := s.stores.Sessions.RevokeByDevice(ctx, device.ID, RevokeReasonDeviceBlocked, now)
	if err != nil {
		return models.Device{}, fmt.Errorf("revoke device sessions: %w", err)
	}
	s.recorder.Record(ctx, observe.Event{Kind: observe.EventDeviceBlocked, UserID: userID, DeviceID: device.ID, Reason: reason})
	s.log.Info().Str("user_id", userID).Str("device_id", device.ID).Int64("sessions_revoked", revoked).Msg("device blocked")
	return device, nil
}

// SetUserStatus changes an account's standing. Any status other than active ends
// all of the account's sessions and refresh tokens.
func (s *AccountService) SetUserStatus(ctx context.Context, userID string, status models.UserStatus) (models.User, error) {
	if !status.Valid() {
		return models.User{}, validationError("unknown status %q", status)
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	user.Status = status
	user.UpdatedAt = now
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("update status: %w", err)
	}

	if status != models.UserStatusActive {
		reason := "account_" + string(status)
		if _, err := s.stores.RefreshTokens.RevokeByUser(ctx, user.ID, reason, now); err != nil {
			return models.User{}, fmt.Errorf("revoke refresh tokens: %w", err)
		}
		if _, err := s.stores.Sessions.RevokeByUser(ctx, user.ID, reason, now); err != nil {
			return models.User{}, fmt.Errorf("revoke sessions: %w", err)
		}
		s.recorder.Record(ctx, observe.Event{Kind: observe.EventAccountRestricted, UserID: user.ID, Reason: reason})
	}
	return user, nil
}

func (s *AccountService) SetUserRole(ctx context.Context, userID string, role models.UserRole) (models.User, error) {
	if !role.Valid() {
		return models.User{}, validationError("unknown role %q", role)
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("update role: %w", err)
	}
	s.recorder.Record(ctx, observe.Event{Kind: observe.EventRoleChanged, UserID: user.ID, Reason: string(role)})
	return user, nil
}

func (s *AccountService) loadUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
