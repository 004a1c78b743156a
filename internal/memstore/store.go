// Package memstore keeps identity records in process memory. It honours the same
// uniqueness rules and not-found errors as the postgres repositories and backs the
// API when no database is configured.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boomscore/identity/internal/models"
	"boomscore/identity/internal/repository"
)

type Store struct {
	Users         *Users
	Devices       *Devices
	Sessions      *Sessions
	RefreshTokens *RefreshTokens
}

func New() *Store {
	return &Store{
		Users:         &Users{byID: map[string]models.User{}},
		Devices:       &Devices{byID: map[string]models.Device{}},
		Sessions:      &Sessions{byID: map[string]models.Session{}},
		RefreshTokens: &RefreshTokens{byID: map[string]models.RefreshToken{}},
	}
}

func conflict(what string) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, what)
}

type Users struct {
	mu   sync.Mutex
	byID map[string]models.User
}

func (s *Users) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	if _, ok := s.byID[user.ID]; ok {
		return conflict("users.id")
	}
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	s.byID[user.ID] = user
	return nil
}

func (s *Users) checkUniqueLocked(user models.User) error {
	for id, existing := range s.byID {
		if id == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return conflict("users.email")
		}
		if existing.Username == user.Username {
			return conflict("users.username")
		}
		if user.GoogleID != nil && existing.GoogleID != nil && *existing.GoogleID == *user.GoogleID {
			return conflict("users.google_id")
		}
	}
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *Users) find(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byID {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	email = strings.ToLower(email)
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Users) FindByUsername(_ context.Context, username string) (models.User, error) {
	username = strings.ToLower(username)
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *Users) FindByGoogleID(_ context.Context, googleID string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (s *Users) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	s.byID[user.ID] = user
	return nil
}

func (s *Users) ResetUsage(_ context.Context, periodStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, user := range s.byID {
		if user.UsageResetAt.Before(periodStart) {
			user.PredictionsUsed = 0
			user.ChatMessagesUsed = 0
			user.UsageResetAt = periodStart
			s.byID[id] = user
			n++
		}
	}
	return n, nil
}

type Devices struct {
	mu   sync.Mutex
	byID map[string]models.Device
}

func (s *Devices) Create(_ context.Context, device models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[device.ID]; ok {
		return conflict("devices.id")
	}
	for _, existing := range s.byID {
		if existing.UserID == device.UserID && existing.Fingerprint == device.Fingerprint {
			return conflict("devices.user_id_fingerprint")
		}
	}
	s.byID[device.ID] = device
	return nil
}

func (s *Devices) GetByID(_ context.Context, id string) (models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.byID[id]
	if !ok {
		return models.Device{}, repository.ErrDeviceNotFound
	}
	return device, nil
}

func (s *Devices) FindByFingerprint(_ context.Context, userID string, fingerprint string) (models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, device := range s.byID {
		if device.UserID == userID && device.Fingerprint == fingerprint {
			return device, nil
		}
	}
	return models.Device{}, repository.ErrDeviceNotFound
}

func (s *Devices) ListByUser(_ context.Context, userID string) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Device
	for _, device := range s.byID {
		if device.UserID == userID {
			out = append(out, device)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (s *Devices) Update(_ context.Context, device models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[device.ID]; !ok {
		return repository.ErrDeviceNotFound
	}
	s.byID[device.ID] = device
	return nil
}

type Sessions struct {
	mu   sync.Mutex
	byID map[string]models.Session
}

func (s *Sessions) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[session.ID]; ok {
		return conflict("sessions.id")
	}
	for _, existing := range s.byID {
		if existing.Token == session.Token {
			return conflict("sessions.token")
		}
	}
	s.byID[session.ID] = session
	return nil
}

func (s *Sessions) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *Sessions) GetByToken(_ context.Context, token string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.byID {
		if session.Token == token {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (s *Sessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, session := range s.byID {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out, nil
}

func (s *Sessions) Update(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[session.ID]; !ok {
		return repository.ErrSessionNotFound
	}
	s.byID[session.ID] = session
	return nil
}

func (s *Sessions) revokeWhere(match func(models.Session) bool, reason string, now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.byID {
		if session.Status != models.SessionStatusActive || !match(session) {
			continue
		}
		_ = session.Revoke(now, reason)
		s.byID[id] = session
		n++
	}
	return n
}

func (s *Sessions) RevokeByUser(_ context.Context, userID string, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(func(sess models.Session) bool { return sess.UserID == userID }, reason, now), nil
}

func (s *Sessions) RevokeByDevice(_ context.Context, deviceID string, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(func(sess models.Session) bool {
		return sess.DeviceID != nil && *sess.DeviceID == deviceID
	}, reason, now), nil
}

func (s *Sessions) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.byID {
		if session.Status == models.SessionStatusActive && !session.ExpiresAt.After(now) {
			_ = session.Expire(now)
			s.byID[id] = session
			n++
		}
	}
	return n, nil
}

type RefreshTokens struct {
	mu   sync.Mutex
	byID map[string]models.RefreshToken
}

func (s *RefreshTokens) Create(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[token.ID]; ok {
		return conflict("refresh_tokens.id")
	}
	for _, existing := range s.byID {
		if bytes.Equal(existing.TokenHash, token.TokenHash) {
			return conflict("refresh_tokens.token_hash")
		}
	}
	s.byID[token.ID] = token
	return nil
}

func (s *RefreshTokens) FindByHash(_ context.Context, hash []byte) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.byID {
		if bytes.Equal(token.TokenHash, hash) {
			return token, nil
		}
	}
	return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
}

func (s *RefreshTokens) MarkUsed(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byID[id]
	if !ok {
		return repository.ErrRefreshTokenNotActive
	}
	if err := token.Use(now); err != nil {
		return repository.ErrRefreshTokenNotActive
	}
	s.byID[id] = token
	return nil
}

func (s *RefreshTokens) Update(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[token.ID]; !ok {
		return repository.ErrRefreshTokenNotFound
	}
	s.byID[token.ID] = token
	return nil
}

func (s *RefreshTokens) revokeWhere(match func(models.RefreshToken) bool, reason string, now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, token := range s.byID {
		if token.Status != models.RefreshTokenStatusActive || !match(token) {
			continue
		}
		_ = token.Revoke(now, reason)
		s.byID[id] = token
		n++
	}
	return n
}

func (s *RefreshTokens) RevokeBySession(_ context.Context, sessionID string, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(func(t models.RefreshToken) bool {
		return t.SessionID != nil && *t.SessionID == sessionID
	}, reason, now), nil
}

func (s *RefreshTokens) RevokeByUser(_ context.Context, userID string, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(func(t models.RefreshToken) bool { return t.UserID == userID }, reason, now), nil
}

func (s *RefreshTokens) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, token := range s.byID {
		if token.Status == models.RefreshTokenStatusActive && !token.ExpiresAt.After(now) {
			_ = token.Expire(now)
			s.byID[id] = token
			n++
		}
	}
	return n, nil
}
