package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boomscore/identity/internal/models"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `
	id, user_id, device_id, token, status, expires_at, ip_address, user_agent,
	last_activity_at, revoked_at, revoke_reason, created_at, updated_at
`

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.DeviceID,
		session.Token,
		session.Status,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.LastActivityAt,
		session.RevokedAt,
		session.RevokeReason,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	return scanSession(row)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY last_activity_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Update(ctx context.Context, session models.Session) error {
	const query = `
		UPDATE sessions SET
			status = $2,
			expires_at = $3,
			ip_address = $4,
			user_agent = $5,
			last_activity_at = $6,
			revoked_at = $7,
			revoke_reason = $8,
			updated_at = $9
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Status,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.LastActivityAt,
		session.RevokedAt,
		session.RevokeReason,
		session.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) RevokeByUser(ctx context.Context, userID string, reason string, now time.Time) (int64, error) {
	const query = `
		UPDATE sessions
		SET status = 'revoked', revoked_at = $2, revoke_reason = $3, updated_at = $2
		WHERE user_id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, userID, now, reason)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) RevokeByDevice(ctx context.Context, deviceID string, reason string, now time.Time) (int64, error) {
	const query = `
		UPDATE sessions
		SET status = 'revoked', revoked_at = $2, revoke_reason = $3, updated_at = $2
		WHERE device_id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, deviceID, now, reason)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ExpireStale moves active sessions past their expiry to the expired status.
func (r *SessionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE sessions
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceID,
		&session.Token,
		&session.Status,
		&session.ExpiresAt,
		&session.IPAddress,
		&session.UserAgent,
		&session.LastActivityAt,
		&session.RevokedAt,
		&session.RevokeReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}
