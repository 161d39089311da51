package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

// openTestRepository connects to DATABASE_URL and migrates it. Tests that
// need Postgres are skipped when it is not set.
func openTestRepository(t *testing.T) *PlanRepository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("Requires database setup - set DATABASE_URL to run Postgres tests")
	}

	db, err := New(url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewMigrator(db)
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if _, err := m.Up(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewPlanRepository(db, nil)
}

// insertPlans stores plans and removes them again when the test ends
func insertPlans(t *testing.T, repo *PlanRepository, plans ...*models.Plan) {
	t.Helper()
	ctx := context.Background()
	for _, p := range plans {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		id := p.ID
		t.Cleanup(func() { _, _ = repo.db.ExecContext(context.Background(), `DELETE FROM plans WHERE id = $1`, id) })
	}
}

func TestPlanRepository_KeepsBucketMembership(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	march := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	buckets := []planner.Bucket{
		planner.BucketThisMonth, planner.BucketNextMonth,
		planner.BucketThisYear, planner.BucketNextYearOnwards,
	}

	for _, preset := range []models.PeriodPreset{models.PeriodThisMonth, models.PeriodThisYear, models.PeriodWinter} {
		plan, err := models.NewPeriodPlan(string(preset), preset, nil, march)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		insertPlans(t, repo, plan)

		stored, err := repo.GetByID(ctx, plan.ID)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if want := plan.Record().PeriodEnd; !stored.PeriodEnd().Equal(*want) {
			t.Errorf("%s: expected stored end %v, got %v", preset, want, stored.PeriodEnd())
		}
		for _, b := range buckets {
			if before, after := planner.BelongsTo(plan, b, march), planner.BelongsTo(stored, b, march); before != after {
				t.Errorf("%s: expected %s membership %v after storage, got %v", preset, b, before, after)
			}
		}
	}
}

func TestPlanRepository_CRUD(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changes []ChangeOp
	)
	repo.SetChangeHandler(func(ctx context.Context, change PlanChange) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change.Op)
		return nil
	})

	due := testNow.Add(72 * time.Hour)
	older := mustPlan(t, "older", testNow.Add(-time.Hour))
	newer := mustPlan(t, "newer", testNow)
	gift, err := models.NewDeadlinePlan("gift", models.DeadlineCustom, &due, nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	insertPlans(t, repo, older, newer, gift)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetByID(ctx, gift.ID)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got.Kind() != models.TimeModeDeadline || !got.Deadline().Equal(due) {
			t.Errorf("Expected deadline %v, got %v", due, got.Deadline())
		}
		if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		updated, err := repo.Update(ctx, older.ID, func(p *models.Plan) error {
			return p.Rename("renamed", testNow)
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if updated.Title != "renamed" {
			t.Errorf("Expected renamed, got %q", updated.Title)
		}

		failure := errors.New("rejected")
		if _, err := repo.Update(ctx, older.ID, func(p *models.Plan) error {
			_ = p.Rename("discarded", testNow)
			return failure
		}); !errors.Is(err, failure) {
			t.Errorf("Expected mutator error, got %v", err)
		}
		got, _ := repo.GetByID(ctx, older.ID)
		if got == nil || got.Title != "renamed" {
			t.Error("Expected a failed mutation to leave the row unchanged")
		}

		if _, err := repo.Update(ctx, uuid.New(), func(p *models.Plan) error { return nil }); !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("list active", func(t *testing.T) {
		if _, err := repo.Update(ctx, gift.ID, func(p *models.Plan) error {
			p.ToggleArchived(testNow)
			return nil
		}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		plans, err := repo.ListActive(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		var order []uuid.UUID
		for _, p := range plans {
			switch p.ID {
			case older.ID, newer.ID:
				order = append(order, p.ID)
			case gift.ID:
				t.Error("Expected archived plan to be excluded")
			}
		}
		if len(order) != 2 || order[0] != newer.ID || order[1] != older.ID {
			t.Errorf("Expected newest first, got %v", order)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, newer.ID); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if err := repo.Delete(ctx, newer.ID); !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound on second delete, got %v", err)
		}
	})

	mu.Lock()
	defer mu.Unlock()
	want := []ChangeOp{ChangeInsert, ChangeInsert, ChangeInsert, ChangeUpdate, ChangeUpdate, ChangeDelete}
	if len(changes) != len(want) {
		t.Fatalf("Expected %d change notifications, got %v", len(want), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("Expected change %d to be %s, got %s", i, want[i], changes[i])
		}
	}
}
