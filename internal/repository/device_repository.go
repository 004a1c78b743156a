package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boomscore/identity/internal/models"
)

type DeviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

const deviceColumns = `
	id, user_id, fingerprint, name, status, last_ip, last_location, last_seen_at,
	trusted_at, blocked_at, block_reason, created_at, updated_at
`

func (r *DeviceRepository) Create(ctx context.Context, device models.Device) error {
	const query = `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		device.ID,
		device.UserID,
		device.Fingerprint,
		device.Name,
		device.Status,
		device.LastIP,
		device.LastLocation,
		device.LastSeenAt,
		device.TrustedAt,
		device.BlockedAt,
		device.BlockReason,
		device.CreatedAt,
		device.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *DeviceRepository) GetByID(ctx context.Context, id string) (models.Device, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

func (r *DeviceRepository) FindByFingerprint(ctx context.Context, userID string, fingerprint string) (models.Device, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint)
	return scanDevice(row)
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID string) ([]models.Device, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY last_seen_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) Update(ctx context.Context, device models.Device) error {
	const query = `
		UPDATE devices SET
			name = $2,
			status = $3,
			last_ip = $4,
			last_location = $5,
			last_seen_at = $6,
			trusted_at = $7,
			blocked_at = $8,
			block_reason = $9,
			updated_at = $10
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		device.ID,
		device.Name,
		device.Status,
		device.LastIP,
		device.LastLocation,
		device.LastSeenAt,
		device.TrustedAt,
		device.BlockedAt,
		device.BlockReason,
		device.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (models.Device, error) {
	var device models.Device
	if err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Fingerprint,
		&device.Name,
		&device.Status,
		&device.LastIP,
		&device.LastLocation,
		&device.LastSeenAt,
		&device.TrustedAt,
		&device.BlockedAt,
		&device.BlockReason,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Device{}, ErrDeviceNotFound
		}
		return models.Device{}, err
	}
	return device, nil
}
