package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeBoardRefresh rebuilds and caches the board snapshot
	JobTypeBoardRefresh JobType = "board_refresh"
)

// RefreshReason records what triggered a board refresh
type RefreshReason string

const (
	ReasonPlanChange  RefreshReason = "plan_change"
	ReasonDayRollover RefreshReason = "day_rollover"
	ReasonManual      RefreshReason = "manual"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID     `json:"id"`
	Type       JobType       `json:"type"`
	Reason     RefreshReason `json:"reason"`
	PlanID     *uuid.UUID    `json:"plan_id,omitempty"`    // Plan whose write triggered the job
	NotBefore  *time.Time    `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time    `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time     `json:"created_at"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`
}

// NewBoardRefreshJob creates a board refresh job
func NewBoardRefreshJob(reason RefreshReason, planID *uuid.UUID, now time.Time) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeBoardRefresh,
		Reason:     reason,
		PlanID:     planID,
		CreatedAt:  now,
		MaxRetries: 3,
	}
}

// Debounce delays the job by d from its creation time
func (j *Job) Debounce(d time.Duration) *Job {
	if d > 0 {
		notBefore := j.CreatedAt.Add(d)
		j.NotBefore = &notBefore
	}
	return j
}

// ShouldProcess checks if the job is inside its processing window at now
func (j *Job) ShouldProcess(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired(now)
}

// IsExpired checks if the job has expired at now
func (j *Job) IsExpired(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
