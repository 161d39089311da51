package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/benvon/soonish/internal/models"
)

// ErrPlanNotFound is returned when no plan has the requested id
var ErrPlanNotFound = errors.New("plan not found")

// ChangeOp names the kind of write that produced a PlanChange
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// PlanChange is a single-record change notification
type PlanChange struct {
	Op     ChangeOp  `json:"op"`
	PlanID uuid.UUID `json:"plan_id"`
}

// ChangeHandler is invoked after every successful write
type ChangeHandler func(ctx context.Context, change PlanChange) error

// PlanStore is the persistence contract for plans. Writes are atomic
// single-record operations. Update loads the current plan, applies mutate
// and stores the result; when mutate fails nothing is written.
type PlanStore interface {
	Insert(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*models.Plan) error) (*models.Plan, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive returns non-completed, non-archived plans, newest first
	ListActive(ctx context.Context) ([]*models.Plan, error)
	// ListAll returns every plan, newest first
	ListAll(ctx context.Context) ([]*models.Plan, error)
	// Watch streams change notifications until ctx is cancelled
	Watch(ctx context.Context) (<-chan PlanChange, error)
}

// Ensure concrete types implement the interface
var (
	_ PlanStore = (*PlanRepository)(nil)
	_ PlanStore = (*MemoryPlanStore)(nil)
)
