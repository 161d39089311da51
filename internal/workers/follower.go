package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/queue"
)

// PlanWatcher streams plan change notifications
type PlanWatcher interface {
	Watch(ctx context.Context) (<-chan database.PlanChange, error)
}

// ChangeFollower turns store notifications into board refresh jobs. Bursts
// of changes inside the debounce window collapse into a single job.
type ChangeFollower struct {
	source   PlanWatcher
	enqueuer JobEnqueuer
	debounce time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewChangeFollower creates a follower
func NewChangeFollower(source PlanWatcher, enqueuer JobEnqueuer, debounce time.Duration, logger *zap.Logger) *ChangeFollower {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeFollower{
		source:   source,
		enqueuer: enqueuer,
		debounce: debounce,
		logger:   logger,
		now:      time.Now,
	}
}

// Start follows changes until ctx is cancelled or the stream ends
func (f *ChangeFollower) Start(ctx context.Context) error {
	changes, err := f.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch plan changes: %w", err)
	}

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			pending++
			f.logger.Debug("plan_change_observed",
				zap.String("op", string(change.Op)),
				zap.String("plan_id", change.PlanID.String()),
			)
			if f.debounce <= 0 {
				f.flush(ctx, pending)
				pending = 0
				continue
			}
			if fire == nil {
				timer = time.NewTimer(f.debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			f.flush(ctx, pending)
			pending = 0
		}
	}
}

func (f *ChangeFollower) flush(ctx context.Context, pending int) {
	job := queue.NewBoardRefreshJob(queue.ReasonPlanChange, nil, f.now())
	if err := f.enqueuer.Enqueue(ctx, job); err != nil {
		f.logger.Warn("failed_to_enqueue_change_refresh",
			zap.Int("pending_changes", pending),
			zap.Error(err),
		)
	}
}
