package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"boomscore/identity/internal/ids"
	"boomscore/identity/internal/models"
	"boomscore/identity/internal/observe"
	"boomscore/identity/internal/repository"
	"boomscore/identity/internal/security"
)

const (
	sessionTokenBytes = 32
	refreshTokenBytes = 48

	// activity writes are coalesced to at most one per session per interval
	activityTouchInterval = time.Minute

	RevokeReasonLogout        = "logout"
	RevokeReasonSessionLimit  = "session_limit"
	RevokeReasonRefreshReuse  = "refresh_reuse"
	RevokeReasonUserRevoked   = "user_revoked"
	RevokeReasonDeviceBlocked = "device_blocked"
)

type AuthOptions struct {
	RefreshTTL     time.Duration
	MaxSessions    int
	SessionBinding bool
}

// ClientInfo describes the caller of an authentication operation as seen by the
// transport.
type ClientInfo struct {
	IP          string
	UserAgent   string
	Fingerprint string
	DeviceName  string
	Location    string
}

type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             models.User
	Session          models.Session
	Device           *models.Device
}

// Principal is an authenticated caller.
type Principal struct {
	User    models.User
	Claims  *security.Claims
	Session *models.Session
}

type AuthService struct {
	stores   Stores
	verifier *CredentialVerifier
	issuer   *security.TokenIssuer
	recorder observe.Recorder
	opts     AuthOptions
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(stores Stores, issuer *security.TokenIssuer, recorder observe.Recorder, opts AuthOptions, log zerolog.Logger) *AuthService {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10
	}
	if recorder == nil {
		recorder = observe.Nop()
	}
	return &AuthService{
		stores:   stores,
		verifier: NewCredentialVerifier(stores.Users),
		issuer:   issuer,
		recorder: recorder,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// WithClock makes the service, its verifier and its token issuer read time from now.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	s.verifier.now = now
	s.issuer = s.issuer.WithClock(now)
	return s
}

func (s *AuthService) Verifier() *CredentialVerifier {
	return s.verifier
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Timezone  string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput, client ClientInfo) (AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.Username = normalizeUsername(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}

	for _, check := range []error{
		validateEmail(input.Email),
		validateUsername(input.Username),
		validatePassword(input.Password),
		validateName("first name", input.FirstName),
		validateName("last name", input.LastName),
		validateTimezone(input.Timezone),
	} {
		if check != nil {
			return AuthResult{}, check
		}
	}

	if err := s.ensureAvailable(ctx, input.Email, input.Username); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Timezone:     input.Timezone,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
		UsageResetAt: models.UsagePeriodStart(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost a race with a concurrent registration; report which field collided
			if _, findErr := s.stores.Users.FindByEmail(ctx, user.Email); findErr == nil {
				return AuthResult{}, ErrDuplicateEmail
			}
			return AuthResult{}, ErrDuplicateUsername
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	s.recorder.Record(ctx, observe.Event{Kind: observe.EventRegistered, UserID: user.ID, IP: client.IP})

	return s.startSession(ctx, user, client)
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.stores.Users.FindByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("check email: %w", err)
	}

	if _, err := s.stores.Users.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	return nil
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput, client ClientInfo) (AuthResult, error) {
	user, err := s.verifier.Verify(ctx, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.recorder.Record(ctx, observe.Event{Kind: observe.EventLoginFailed, IP: client.IP, Reason: "invalid_credentials"})
		}
		return AuthResult{}, err
	}

	if !user.IsActive() {
		s.recorder.Record(ctx, observe.Event{Kind: observe.EventLoginFailed, UserID: user.ID, IP: client.IP, Reason: "account_" + string(user.Status)})
		return AuthResult{}, ErrAccountInactive
	}

	return s.startSession(ctx, user, client)
}

// LoginExternal signs in (or signs up) the owner of a verified external identity.
func (s *AuthService) LoginExternal(ctx context.Context, profile ExternalProfile, client ClientInfo) (AuthResult, error) {
	user, created, err := s.verifier.ResolveExternalIdentity(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}
	if !user.IsActive() {
		s.recorder.Record(ctx, observe.Event{Kind: observe.EventLoginFailed, UserID: user.ID, IP: client.IP, Reason: "account_" + string(user.Status)})
		return AuthResult{}, ErrAccountInactive
	}

	reason := "linked"
	if created {
		reason = "created"
		s.recorder.Record(ctx, observe.Event{Kind: observe.EventRegistered, UserID: user.ID, IP: client.IP, Reason: profile.Provider})
	}
	s.recorder.Record(ctx, observe.Event{Kind: observe.EventExternalLogin, UserID: user.ID, IP: client.IP, Reason: reason})

	return s.startSession(ctx, user, client)
}

func (s *AuthService) startSession(ctx context.Context, user models.User, client ClientInfo) (AuthResult, error) {
	now := s.now()

	device, err := s.resolveDevice(ctx, user.ID, client, now)
	if err != nil {
		return AuthResult{}, err
	}

	sessionToken, _, err := security.GenerateOpaqueToken(sessionTokenBytes)
	if err != nil {
		return AuthResult{}, err
	}

	var deviceID *string
	if device != nil {
		id := device.ID
		deviceID = &id
	}
	session := models.NewSession(ids.New(), user.ID, deviceID, sessionToken, now, s.opts.RefreshTTL)
	session.UpdateActivity(now, client.IP, client.UserAgent)
	if err := s.stores.Sessions.Create(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.enforceSessionLimit(ctx, user.ID, session.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	refreshToken, refresh, err := s.issueRefreshToken(ctx, user.ID, session.ID, now)
	if err != nil {
		return AuthResult{}, err
	}

	accessToken, accessExpiresAt, err := s.issuer.Issue(user, session.Token)
	if err != nil {
		return AuthResult{}, err
	}

	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return AuthResult{}, fmt.Errorf("stamp last login: %w", err)
	}

	event := observe.Event{Kind: observe.EventLoginSucceeded, UserID: user.ID, SessionID: session.ID, IP: client.IP}
	if device != nil {
		event.DeviceID = device.ID
	}
	s.recorder.Record(ctx, event)

	return AuthResult{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user,
		Session:          session,
		Device:           device,
	}, nil
}

// resolveDevice finds or registers the device named by the client fingerprint.
// Clients that send no fingerprint get a session without a device.
func (s *AuthService) resolveDevice(ctx context.Context, userID string, client ClientInfo, now time.Time) (*models.Device, error) {
	fingerprint := strings.TrimSpace(client.Fingerprint)
	if fingerprint == "" {
		return nil, nil
	}

	device, err := s.stores.Devices.FindByFingerprint(ctx, userID, fingerprint)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		device = models.NewDevice(ids.New(), userID, fingerprint, deviceName(client), now)
		device.UpdateLastSeen(now, client.IP, client.Location)
		err = s.stores.Devices.Create(ctx, device)
		if errors.Is(err, repository.ErrConflict) {
			device, err = s.stores.Devices.FindByFingerprint(ctx, userID, fingerprint)
		} else if err == nil {
			return &device, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve device: %w", err)
	}

	if device.IsBlocked() {
		s.recorder.Record(ctx, observe.Event{Kind: observe.EventLoginFailed, UserID: userID, DeviceID: device.ID, IP: client.IP, Reason: "device_blocked"})
		return nil, ErrDeviceBlocked
	}

	device.UpdateLastSeen(now, client.IP, client.Location)
	if err := s.stores.Devices.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	return &device, nil
}

func deviceName(client ClientInfo) string {
	if name := strings.TrimSpace(client.DeviceName); name != "" {
		return name
	}
	if ua := strings.TrimSpace(client.UserAgent); ua != "" {
		if len(ua) > 120 {
			ua = ua[:120]
		}
		return ua
	}
	return "Unknown device"
}

// enforceSessionLimit revokes the least recently used sessions beyond the cap,
// never the one just created.
func (s *AuthService) enforceSessionLimit(ctx context.Context, userID, keepID string, now time.Time) error {
	sessions, err := s.stores.Sessions.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	active := sessions[:0]
	for _, session := range sessions {
		if session.IsActiveAt(now) && session.ID != keepID {
			active = append(active, session)
		}
	}
	excess := len(active) + 1 - s.opts.MaxSessions
	if excess <= 0 {
		return nil
	}

	sort.Slice(active, func(i, j int) bool { return active[i].LastActivityAt.Before(active[j].LastActivityAt) })
	for _, session := range active[:excess] {
		if err := s.revokeSession(ctx, session, RevokeReasonSessionLimit, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) revokeSession(ctx context.Context, session models.Session, reason string, now time.Time) error {
	return revokeSession(ctx, s.stores, s.recorder, session, reason, now)
}

func revokeSession(ctx context.Context, stores Stores, recorder observe.Recorder, session models.Session, reason string, now time.Time) error {
	if err := session.Revoke(now, reason); err != nil {
		return nil
	}
	if err := stores.Sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if _, err := stores.RefreshTokens.RevokeBySession(ctx, session.ID, reason, now); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	event := observe.Event{Kind: observe.EventSessionRevoked, UserID: session.UserID, SessionID: session.ID, Reason: reason}
	if session.DeviceID != nil {
		event.DeviceID = *session.DeviceID
	}
	recorder.Record(ctx, event)
	return nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, sessionID string, now time.Time) (string, models.RefreshToken, error) {
	plain, hash, err := security.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return "", models.RefreshToken{}, err
	}
	sid := sessionID
	token := models.NewRefreshToken(ids.New(), userID, &sid, hash, now, s.opts.RefreshTTL)
	if err := s.stores.RefreshTokens.Create(ctx, token); err != nil {
		return "", models.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return plain, token, nil
}

// Refresh redeems a refresh token exactly once and rotates it. A token that was
// already redeemed signals theft: every session of its owner is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrUnauthorized
	}
	now := s.now()

	token, err := s.stores.RefreshTokens.FindByHash(ctx, security.HashOpaqueToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("find refresh token: %w", err)
	}

	switch token.Status {
	case models.RefreshTokenStatusUsed:
		s.revokeEverything(ctx, token.UserID, RevokeReasonRefreshReuse, now)
		event := observe.Event{Kind: observe.EventRefreshReuse, UserID: token.UserID, IP: client.IP}
		if token.SessionID != nil {
			event.SessionID = *token.SessionID
		}
		s.recorder.Record(ctx, event)
		return AuthResult{}, ErrRefreshReuse
	case models.RefreshTokenStatusActive:
		if !token.IsActiveAt(now) {
			if err := token.Expire(now); err == nil {
				if err := s.stores.RefreshTokens.Update(ctx, token); err != nil {
					s.log.Warn().Err(err).Str("refresh_token_id", token.ID).Msg("mark refresh token expired failed")
				}
			}
			return AuthResult{}, ErrUnauthorized
		}
	default:
		return AuthResult{}, ErrUnauthorized
	}

	if err := s.stores.RefreshTokens.MarkUsed(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotActive) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("redeem refresh token: %w", err)
	}

	if token.SessionID == nil {
		return AuthResult{}, ErrUnauthorized
	}
	session, err := s.stores.Sessions.GetByID(ctx, *token.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("load session: %w", err)
	}
	if !session.Extend(now, s.opts.RefreshTTL) {
		return AuthResult{}, ErrUnauthorized
	}
	session.UpdateActivity(now, client.IP, client.UserAgent)

	user, err := s.stores.Users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		return AuthResult{}, ErrAccountInactive
	}

	if err := s.stores.Sessions.Update(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("extend session: %w", err)
	}

	plain, next, err := s.issueRefreshToken(ctx, user.ID, session.ID, now)
	if err != nil {
		return AuthResult{}, err
	}
	accessToken, accessExpiresAt, err := s.issuer.Issue(user, session.Token)
	if err != nil {
		return AuthResult{}, err
	}

	s.recorder.Record(ctx, observe.Event{Kind: observe.EventRefreshRotated, UserID: user.ID, SessionID: session.ID, IP: client.IP})

	return AuthResult{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     plain,
		RefreshExpiresAt: next.ExpiresAt,
		User:             user,
		Session:          session,
	}, nil
}

func (s *AuthService) revokeEverything(ctx context.Context, userID, reason string, now time.Time) {
	if _, err := s.stores.RefreshTokens.RevokeByUser(ctx, userID, reason, now); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("revoke refresh tokens failed")
	}
	if _, err := s.stores.Sessions.RevokeByUser(ctx, userID, reason, now); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("revoke sessions failed")
	}
}

// Logout ends the session named by the access token, or failing that the one
// owning the refresh token. It succeeds when there is nothing to end.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.now()

	session, ok, err := s.sessionForLogout(ctx, accessToken, refreshToken)
	if err != nil || !ok {
		return err
	}
	if !session.IsActiveAt(now) {
		return nil
	}

	if err := s.revokeSession(ctx, session, RevokeReasonLogout, now); err != nil {
		return err
	}
	s.recorder.Record(ctx, observe.Event{Kind: observe.EventLogout, UserID: session.UserID, SessionID: session.ID})
	return nil
}

func (s *AuthService) sessionForLogout(ctx context.Context, accessToken, refreshToken string) (models.Session, bool, error) {
	if accessToken != "" {
		if claims, err := s.issuer.Verify(accessToken); err == nil {
			session, err := s.stores.Sessions.GetByToken(ctx, claims.SessionToken())
			switch {
			case err == nil:
				return session, true, nil
			case !errors.Is(err, repository.ErrSessionNotFound):
				return models.Session{}, false, fmt.Errorf("load session: %w", err)
			}
		}
	}

	if refreshToken != "" {
		token, err := s.stores.RefreshTokens.FindByHash(ctx, security.HashOpaqueToken(refreshToken))
		if err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return models.Session{}, false, nil
			}
			return models.Session{}, false, fmt.Errorf("find refresh token: %w", err)
		}
		if token.SessionID == nil {
			return models.Session{}, false, nil
		}
		session, err := s.stores.Sessions.GetByID(ctx, *token.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return models.Session{}, false, nil
			}
			return models.Session{}, false, fmt.Errorf("load session: %w", err)
		}
		return session, true, nil
	}

	return models.Session{}, false, nil
}

// Authenticate resolves an access token to its principal. Token and session
// problems yield ErrUnauthorized (wrapped with the reason); storage failures are
// returned as they are.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string, client ClientInfo) (Principal, error) {
	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	now := s.now()

	var session *models.Session
	if s.opts.SessionBinding {
		found, err := s.stores.Sessions.GetByToken(ctx, claims.SessionToken())
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return Principal{}, fmt.Errorf("%w: session not found", ErrUnauthorized)
			}
			return Principal{}, fmt.Errorf("load session: %w", err)
		}
		if !found.IsActiveAt(now) {
			state := string(found.Status)
			if found.Status == models.SessionStatusActive {
				state = string(models.SessionStatusExpired)
			}
			return Principal{}, fmt.Errorf("%w: session %s", ErrUnauthorized, state)
		}
		if found.UserID != claims.UserID() {
			return Principal{}, fmt.Errorf("%w: session owner mismatch", ErrUnauthorized)
		}
		session = &found
	}

	user, err := s.stores.Users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Principal{}, fmt.Errorf("%w: user not found", ErrUnauthorized)
		}
		return Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		return Principal{}, fmt.Errorf("%w: account %s", ErrUnauthorized, user.Status)
	}

	if session != nil && now.Sub(session.LastActivityAt) >= activityTouchInterval {
		session.UpdateActivity(now, client.IP, client.UserAgent)
		if err := s.stores.Sessions.Update(ctx, *session); err != nil {
			s.log.Debug().Err(err).Str("session_id", session.ID).Msg("touch session activity failed")
		}
	}

	return Principal{User: user, Claims: claims, Session: session}, nil
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Timezone  *string
	Username  *string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (models.User, error) {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if err := validateName("first name", name); err != nil {
			return models.User{}, err
		}
		user.FirstName = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if err := validateName("last name", name); err != nil {
			return models.User{}, err
		}
		user.LastName = name
	}
	if input.Timezone != nil {
		if err := validateTimezone(*input.Timezone); err != nil {
			return models.User{}, err
		}
		user.Timezone = *input.Timezone
	}
	if input.Username != nil {
		username := normalizeUsername(*input.Username)
		if err := validateUsername(username); err != nil {
			return models.User{}, err
		}
		if username != user.Username {
			existing, err := s.stores.Users.FindByUsername(ctx, username)
			if err == nil && existing.ID != user.ID {
				return models.User{}, ErrDuplicateUsername
			}
			if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
				return models.User{}, fmt.Errorf("check username: %w", err)
			}
			user.Username = username
		}
	}

	user.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, err
	}
	return user, nil
}
