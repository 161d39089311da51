package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/models"
)

const planColumns = `id, title, time_mode, period_preset, period_label, deadline_preset,
	custom_deadline_date, period_start, period_end, deadline, memo,
	is_completed, is_archived, created_at, updated_at`

// PlanRepository handles plan database operations
type PlanRepository struct {
	db     *DB
	logger *zap.Logger

	mu       sync.RWMutex
	onChange ChangeHandler
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB, logger *zap.Logger) *PlanRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanRepository{db: db, logger: logger}
}

// SetChangeHandler installs a callback run after each successful write.
// Handler errors are logged and do not fail the write.
func (r *PlanRepository) SetChangeHandler(handler ChangeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = handler
}

// Insert stores a new plan
func (r *PlanRepository) Insert(ctx context.Context, plan *models.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES (:id, :title, :time_mode, :period_preset, :period_label, :deadline_preset,
			:custom_deadline_date, :period_start, :period_end, :deadline, :memo,
			:is_completed, :is_archived, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, plan.Record()); err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	r.notify(ctx, PlanChange{Op: ChangeInsert, PlanID: plan.ID})
	return nil
}

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return getPlan(ctx, r.db, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
}

// Update applies mutate to the stored plan under a row lock and writes the
// result back
func (r *PlanRepository) Update(ctx context.Context, id uuid.UUID, mutate func(*models.Plan) error) (*models.Plan, error) {
	var updated *models.Plan
	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		plan, err := getPlan(ctx, tx, `SELECT `+planColumns+` FROM plans WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if err := mutate(plan); err != nil {
			return err
		}
		if err := plan.Validate(); err != nil {
			return err
		}

		query := `
			UPDATE plans SET
				title = :title, time_mode = :time_mode,
				period_preset = :period_preset, period_label = :period_label,
				deadline_preset = :deadline_preset, custom_deadline_date = :custom_deadline_date,
				period_start = :period_start, period_end = :period_end, deadline = :deadline,
				memo = :memo, is_completed = :is_completed, is_archived = :is_archived,
				updated_at = :updated_at
			WHERE id = :id
		`
		if _, err := tx.NamedExecContext(ctx, query, plan.Record()); err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.notify(ctx, PlanChange{Op: ChangeUpdate, PlanID: id})
	return updated, nil
}

// Delete removes a plan
func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	r.notify(ctx, PlanChange{Op: ChangeDelete, PlanID: id})
	return nil
}

// ListActive returns non-completed, non-archived plans ordered by created_at descending
func (r *PlanRepository) ListActive(ctx context.Context) ([]*models.Plan, error) {
	return r.list(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE NOT is_completed AND NOT is_archived
		ORDER BY created_at DESC
	`)
}

// ListAll returns every plan ordered by created_at descending
func (r *PlanRepository) ListAll(ctx context.Context) ([]*models.Plan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at DESC`)
}

// Watch streams change notifications delivered by the plans table trigger
func (r *PlanRepository) Watch(ctx context.Context) (<-chan PlanChange, error) {
	return ListenPlanChanges(ctx, r.db.url, r.logger)
}

func (r *PlanRepository) list(ctx context.Context, query string) ([]*models.Plan, error) {
	var records []models.PlanRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}

	plans := make([]*models.Plan, 0, len(records))
	for _, rec := range records {
		plan, err := models.PlanFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode plan %s: %w", rec.ID, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *PlanRepository) notify(ctx context.Context, change PlanChange) {
	r.mu.RLock()
	handler := r.onChange
	r.mu.RUnlock()
	if handler == nil {
		return
	}
	if err := handler(ctx, change); err != nil {
		r.logger.Warn("plan_change_handler_failed",
			zap.String("op", string(change.Op)),
			zap.String("plan_id", change.PlanID.String()),
			zap.Error(err),
		)
	}
}

func getPlan(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*models.Plan, error) {
	var rec models.PlanRecord
	err := sqlx.GetContext(ctx, q, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	plan, err := models.PlanFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", rec.ID, err)
	}
	return plan, nil
}
