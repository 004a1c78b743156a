package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boomscore/identity/internal/models"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

const refreshTokenColumns = `
	id, user_id, session_id, token_hash, status, expires_at, used_at, revoked_at, revoke_reason, created_at
`

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.SessionID,
		token.TokenHash,
		token.Status,
		token.ExpiresAt,
		token.UsedAt,
		token.RevokedAt,
		token.RevokeReason,
		token.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, hash []byte) (models.RefreshToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)

	var token models.RefreshToken
	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.SessionID,
		&token.TokenHash,
		&token.Status,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.RevokedAt,
		&token.RevokeReason,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return token, nil
}

// MarkUsed is the single-use gate: only one caller can move a given token out of
// the active state, concurrent redemptions get ErrRefreshTokenNotActive.
func (r *RefreshTokenRepository) MarkUsed(ctx context.Context, id string, now time.Time) error {
	const query = `
		UPDATE refresh_tokens
		SET status = 'used', used_at = $2
		WHERE id = $1 AND status = 'active' AND expires_at > $2
	`
	cmd, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotActive
	}
	return nil
}

func (r *RefreshTokenRepository) Update(ctx context.Context, token models.RefreshToken) error {
	const query = `
		UPDATE refresh_tokens
		SET status = $2, used_at = $3, revoked_at = $4, revoke_reason = $5
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, token.ID, token.Status, token.UsedAt, token.RevokedAt, token.RevokeReason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeBySession(ctx context.Context, sessionID string, reason string, now time.Time) (int64, error) {
	const query = `
		UPDATE refresh_tokens
		SET status = 'revoked', revoked_at = $2, revoke_reason = $3
		WHERE session_id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, sessionID, now, reason)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepository) RevokeByUser(ctx context.Context, userID string, reason string, now time.Time) (int64, error) {
	const query = `
		UPDATE refresh_tokens
		SET status = 'revoked', revoked_at = $2, revoke_reason = $3
		WHERE user_id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, userID, now, reason)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE refresh_tokens
		SET status = 'expired'
		WHERE status = 'active' AND expires_at <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
