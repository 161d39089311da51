// Package workers runs the background board maintenance: rebuilding the
// cached board on queue jobs, at local midnight and on store notifications.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
	"github.com/benvon/soonish/internal/queue"
)

// ActivePlanLister loads the plans a board is built from
type ActivePlanLister interface {
	ListActive(ctx context.Context) ([]*models.Plan, error)
}

// BoardWriter stores a freshly built board
type BoardWriter interface {
	Set(ctx context.Context, board *planner.Board) error
}

// RefreshObserver records board rebuilds
type RefreshObserver interface {
	ObserveBoardRefresh(reason, result string, duration time.Duration)
}

// BoardRefresher rebuilds the board snapshot from the active plans
type BoardRefresher struct {
	plans    ActivePlanLister
	boards   BoardWriter
	jobQueue queue.JobQueue
	observer RefreshObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewBoardRefresher creates a refresher. jobQueue is used to re-enqueue
// failed jobs with a delay and may be nil.
func NewBoardRefresher(plans ActivePlanLister, boards BoardWriter, jobQueue queue.JobQueue, logger *zap.Logger) *BoardRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardRefresher{
		plans:    plans,
		boards:   boards,
		jobQueue: jobQueue,
		logger:   logger,
		now:      time.Now,
	}
}

// SetObserver installs a recorder for rebuilds
func (r *BoardRefresher) SetObserver(observer RefreshObserver) {
	r.observer = observer
}

// SetClock overrides the source of "now", e.g. to pin the board timezone
func (r *BoardRefresher) SetClock(now func() time.Time) {
	r.now = now
}

// Refresh loads the active plans, builds the board at the current instant
// and stores it
func (r *BoardRefresher) Refresh(ctx context.Context, reason queue.RefreshReason) (*planner.Board, error) {
	start := time.Now()
	board, err := r.refresh(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	if r.observer != nil {
		r.observer.ObserveBoardRefresh(string(reason), result, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("board_refreshed",
		zap.String("reason", string(reason)),
		zap.Int("sections", len(board.Sections)),
		zap.Int("someday", len(board.Someday)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return board, nil
}

func (r *BoardRefresher) refresh(ctx context.Context) (*planner.Board, error) {
	plans, err := r.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active plans: %w", err)
	}
	board := planner.BuildBoard(plans, r.now())
	if err := r.boards.Set(ctx, board); err != nil {
		return nil, fmt.Errorf("failed to store board: %w", err)
	}
	return board, nil
}

// ProcessJob handles one queue message, acknowledging it on success
func (r *BoardRefresher) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypeBoardRefresh:
		if _, err := r.Refresh(ctx, job.Reason); err != nil {
			return r.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		return nil

	default:
		// Unknown job type, send to DLQ
		if err := msg.Nack(false); err != nil {
			r.logger.Warn("failed_to_nack_unknown_job", zap.Error(err))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError re-enqueues a failed job with exponential delay while it
// has retries left, and dead-letters it otherwise
func (r *BoardRefresher) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, jobErr error) error {
	if job.CanRetry() && r.jobQueue != nil {
		delay := retryDelay(job.RetryCount)
		notBefore := r.now().Add(delay)
		retry := *job
		retry.NotBefore = &notBefore
		retry.IncrementRetry()

		err := r.jobQueue.Enqueue(ctx, &retry)
		if err == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				r.logger.Warn("failed_to_ack_retried_job", zap.Error(ackErr))
			}
			r.logger.Warn("board_refresh_retry_scheduled",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", retry.RetryCount),
				zap.Duration("retry_delay", delay),
				zap.Error(jobErr),
			)
			return nil
		}
		jobErr = errors.Join(jobErr, fmt.Errorf("failed to re-enqueue: %w", err))
	}

	if err := msg.Nack(false); err != nil {
		r.logger.Warn("failed_to_nack_job", zap.Error(err))
	}
	return fmt.Errorf("board refresh failed (job %s): %w", job.ID, jobErr)
}

// retryDelay doubles from 5s per attempt, capped at 5 minutes
func retryDelay(retryCount int) time.Duration {
	return min(5*time.Second*time.Duration(1<<uint(retryCount)), 5*time.Minute)
}

// Run processes messages until ctx is cancelled or msgs is closed
func (r *BoardRefresher) Run(ctx context.Context, msgs <-chan queue.MessageInterface, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				r.logger.Info("message_channel_closed")
				return
			}
			if err := r.ProcessJob(ctx, msg); err != nil {
				r.logger.Error("failed_to_process_job",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
				)
			}
		}
	}
}

// Enqueue runs the refresh for job synchronously. It lets the refresher
// stand in for a queue when no broker is configured.
func (r *BoardRefresher) Enqueue(ctx context.Context, job *queue.Job) error {
	_, err := r.Refresh(ctx, job.Reason)
	return err
}
