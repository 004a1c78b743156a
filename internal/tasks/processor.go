package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/models"
)

const (
	TypeExpireSessions      = "expire_sessions"
	TypeExpireRefreshTokens = "expire_refresh_tokens"
	TypeResetUsage          = "reset_usage"
)

type SessionExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type UsageResetter interface {
	ResetUsage(ctx context.Context, periodStart time.Time) (int64, error)
}

// Processor runs maintenance tasks taken off the stream. Each task is idempotent,
// so a redelivered entry is harmless.
type Processor struct {
	sessions      SessionExpirer
	refreshTokens SessionExpirer
	users         UsageResetter
	logger        zerolog.Logger
	now           func() time.Time
}

func NewProcessor(sessions, refreshTokens SessionExpirer, users UsageResetter, logger zerolog.Logger) *Processor {
	return &Processor{
		sessions:      sessions,
		refreshTokens: refreshTokens,
		users:         users,
		logger:        logger,
		now:           time.Now,
	}
}

func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	taskType, _ := msg.Values["type"].(string)
	return p.Run(ctx, taskType)
}

func (p *Processor) Run(ctx context.Context, taskType string) error {
	now := p.now()

	switch taskType {
	case TypeExpireSessions:
		return p.count(taskType, func() (int64, error) { return p.sessions.ExpireStale(ctx, now) })
	case TypeExpireRefreshTokens:
		return p.count(taskType, func() (int64, error) { return p.refreshTokens.ExpireStale(ctx, now) })
	case TypeResetUsage:
		return p.count(taskType, func() (int64, error) { return p.users.ResetUsage(ctx, models.UsagePeriodStart(now)) })
	default:
		p.logger.Warn().Str("type", taskType).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) count(taskType string, run func() (int64, error)) error {
	n, err := run()
	if err != nil {
		return fmt.Errorf("%s: %w", taskType, err)
	}
	p.logger.Info().Str("type", taskType).Int64("affected", n).Msg("maintenance task done")
	return nil
}
