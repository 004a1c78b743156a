package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/tasks"
)

// Scheduler enqueues maintenance tasks onto the worker stream on a timetable.
type Scheduler struct {
	cron   *cron.Cron
	queue  *redis.Client
	stream string
	log    zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		queue:  queue,
		stream: stream,
		log:    log,
	}
}

var schedule = []struct {
	spec string
	task string
}{
	{"0 */10 * * * *", tasks.TypeExpireSessions},
	{"0 5 * * * *", tasks.TypeExpireRefreshTokens},
	{"0 0 0 1 * *", tasks.TypeResetUsage},
}

// Start is a no-op without a queue: maintenance then only runs when a worker is
// pointed at the stream by other means.
func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	for _, entry := range schedule {
		task := entry.task
		if _, err := s.cron.AddFunc(entry.spec, func() { s.enqueue(task) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the timetable and waits up to timeout for a running enqueue.
func (s *Scheduler) Stop(timeout time.Duration) {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueue(task string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Enqueue(ctx, s.queue, s.stream, task); err != nil {
		s.log.Error().Err(err).Str("task", task).Msg("enqueue maintenance task failed")
		return
	}
	s.log.Debug().Str("task", task).Msg("maintenance task enqueued")
}

// Enqueue appends one task to the stream.
func Enqueue(ctx context.Context, client *redis.Client, stream, task string) error {
	if client == nil {
		return nil
	}
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"type":        task,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
