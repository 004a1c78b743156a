package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrDeviceNotFound        = errors.New("device not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrRefreshTokenNotActive = errors.New("refresh token not active")
	ErrConflict              = errors.New("unique constraint violated")
)

const uniqueViolation = "23505"

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(ErrConflict, err)
	}
	return err
}
