package service

import (
	"errors"
	"fmt"

	"boomscore/identity/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrDuplicateEmail     = fmt.Errorf("email already registered: %w", ErrDuplicateAccount)
	ErrDuplicateUsername  = fmt.Errorf("username already taken: %w", ErrDuplicateAccount)
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAccountInactive    = errors.New("account is not active")
	ErrDeviceBlocked      = models.ErrDeviceBlocked
	ErrRefreshReuse       = fmt.Errorf("refresh token reuse detected: %w", ErrUnauthorized)
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
