package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"boomscore/identity/internal/ids"
	"boomscore/identity/internal/models"
	"boomscore/identity/internal/repository"
	"boomscore/identity/internal/security"
)

// ExternalProfile is what an external identity provider vouches for.
type ExternalProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	AvatarURL     string
}

// CredentialVerifier turns presented credentials into a user record. It never
// reveals whether an email exists.
type CredentialVerifier struct {
	users UserStore
	now   func() time.Time
}

func NewCredentialVerifier(users UserStore) *CredentialVerifier {
	return &CredentialVerifier{users: users, now: time.Now}
}

func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (models.User, error) {
	user, err := v.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.VerifyDummy(password)
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ResolveExternalIdentity maps a provider profile onto a local user: by provider
// subject first, then by email (linking the subject), otherwise a new account.
// The boolean reports whether the account was created.
func (v *CredentialVerifier) ResolveExternalIdentity(ctx context.Context, profile ExternalProfile) (models.User, bool, error) {
	if strings.TrimSpace(profile.Subject) == "" {
		return models.User{}, false, validationError("external profile has no subject")
	}
	email := normalizeEmail(profile.Email)
	if err := validateEmail(email); err != nil {
		return models.User{}, false, err
	}

	user, err := v.users.FindByGoogleID(ctx, profile.Subject)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, false, fmt.Errorf("find by provider subject: %w", err)
	}

	now := v.now()
	user, err = v.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		subject := profile.Subject
		user.GoogleID = &subject
		if user.AvatarURL == nil && profile.AvatarURL != "" {
			avatar := profile.AvatarURL
			user.AvatarURL = &avatar
		}
		user.UpdatedAt = now
		if err := v.users.Update(ctx, user); err != nil {
			return models.User{}, false, fmt.Errorf("link provider subject: %w", err)
		}
		return user, false, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return models.User{}, false, fmt.Errorf("find by email: %w", err)
	}

	username, err := v.synthesizeUsername(ctx, email)
	if err != nil {
		return models.User{}, false, err
	}
	hash, err := security.UnusablePassword()
	if err != nil {
		return models.User{}, false, err
	}

	subject := profile.Subject
	user = models.User{
		ID:           ids.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Timezone:     "UTC",
		GoogleID:     &subject,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
		UsageResetAt: models.UsagePeriodStart(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}

	if err := v.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.User{}, false, ErrDuplicateAccount
		}
		return models.User{}, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// synthesizeUsername derives a free username from the email local part plus a
// short random suffix.
func (v *CredentialVerifier) synthesizeUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := usernameStrip.ReplaceAllString(strings.ToLower(local), "_")
	base = strings.Trim(base, "_")
	if len(base) > 20 {
		base = base[:20]
	}
	for len(base) < 3 {
		base += "x"
	}

	for attempt := 0; attempt < 5; attempt++ {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
		candidate := base + "_" + suffix
		_, err := v.users.FindByUsername(ctx, candidate)
		if errors.Is(err, repository.ErrUserNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
	}
	return "", ErrDuplicateUsername
}
