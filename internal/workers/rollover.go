package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/calendar"
	"github.com/benvon/soonish/internal/queue"
)

// rolloverJobWindow is how long after midnight a rollover job stays valid
const rolloverJobWindow = time.Hour

// JobEnqueuer accepts board refresh jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// RolloverScheduler requests a board refresh at every local midnight, since
// buckets and remaining-day texts are relative to the current date
type RolloverScheduler struct {
	enqueuer JobEnqueuer
	logger   *zap.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// NewRolloverScheduler creates a scheduler. now decides the local calendar;
// pass a clock in the board timezone.
func NewRolloverScheduler(enqueuer JobEnqueuer, now func() time.Time, logger *zap.Logger) *RolloverScheduler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverScheduler{
		enqueuer: enqueuer,
		logger:   logger,
		now:      now,
		after:    time.After,
	}
}

// NextRollover returns the first local midnight strictly after now
func NextRollover(now time.Time) time.Time {
	return calendar.StartOfDay(now).AddDate(0, 0, 1)
}

// Start waits for each midnight and enqueues a rollover refresh until ctx
// is cancelled
func (s *RolloverScheduler) Start(ctx context.Context) error {
	for {
		next := NextRollover(s.now())
		s.logger.Debug("rollover_scheduled", zap.Time("next_rollover", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}

		if err := s.trigger(ctx, next); err != nil {
			s.logger.Warn("failed_to_schedule_rollover_refresh",
				zap.Time("rollover", next),
				zap.Error(err),
			)
		}
	}
}

func (s *RolloverScheduler) trigger(ctx context.Context, rollover time.Time) error {
	job := queue.NewBoardRefreshJob(queue.ReasonDayRollover, nil, s.now())
	notAfter := rollover.Add(rolloverJobWindow)
	job.NotAfter = &notAfter

	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue rollover job: %w", err)
	}
	s.logger.Info("rollover_refresh_enqueued",
		zap.String("job_id", job.ID.String()),
		zap.Time("rollover", rollover),
	)
	return nil
}
