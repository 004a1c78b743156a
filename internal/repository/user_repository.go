package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boomscore/identity/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
	id, email, username, password_hash, first_name, last_name, avatar_url, timezone, google_id,
	role, status, predictions_used, chat_messages_used, usage_reset_at, last_login_at, created_at, updated_at
`

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, username, password_hash, first_name, last_name, avatar_url, timezone, google_id,
			role, status, predictions_used, chat_messages_used, usage_reset_at, created_at, updated_at
		) VALUES (
			$1, LOWER($2), LOWER($3), $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, $12, $13, $13
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Timezone,
		user.GoogleID,
		user.Role,
		user.Status,
		user.UsageResetAt,
		user.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = LOWER($1)`, username)
}

func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

func (r *UserRepository) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users SET
			email = LOWER($2),
			username = LOWER($3),
			password_hash = $4,
			first_name = $5,
			last_name = $6,
			avatar_url = $7,
			timezone = $8,
			google_id = $9,
			role = $10,
			status = $11,
			last_login_at = $12,
			updated_at = $13
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Timezone,
		user.GoogleID,
		user.Role,
		user.Status,
		user.LastLoginAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetUsage zeroes the monthly counters of every user whose period started
// before periodStart.
func (r *UserRepository) ResetUsage(ctx context.Context, periodStart time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET predictions_used = 0,
		    chat_messages_used = 0,
		    usage_reset_at = $1,
		    updated_at = NOW()
		WHERE usage_reset_at < $1
	`
	cmd, err := r.pool.Exec(ctx, query, periodStart)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.Timezone,
		&user.GoogleID,
		&user.Role,
		&user.Status,
		&user.PredictionsUsed,
		&user.ChatMessagesUsed,
		&user.UsageResetAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
