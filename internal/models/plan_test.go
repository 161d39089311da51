package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewPlan_Validation(t *testing.T) {
	t.Parallel()

	now := at(2026, time.October, 16, 10)
	custom := at(2026, time.December, 24, 0)

	tests := []struct {
		name    string
		build   func() (*Plan, error)
		wantErr error
	}{
		{"empty title", func() (*Plan, error) { return NewAnytimePlan("", nil, now) }, ErrEmptyTitle},
		{"whitespace title", func() (*Plan, error) { return NewPeriodPlan("   ", PeriodSpring, nil, now) }, ErrEmptyTitle},
		{"custom without date", func() (*Plan, error) { return NewDeadlinePlan("Taxes", DeadlineCustom, nil, nil, now) }, ErrMissingCustomDate},
		{"unknown period preset", func() (*Plan, error) { return NewPeriodPlan("Trip", PeriodPreset("someday"), nil, now) }, ErrValidation},
		{"nil mode", func() (*Plan, error) { return NewPlan("Trip", nil, nil, now) }, ErrInvalidTimeMode},
		{"custom with date", func() (*Plan, error) { return NewDeadlinePlan("Taxes", DeadlineCustom, &custom, nil, now) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := tt.build()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected error to match ErrValidation, got %v", err)
			}
			if plan != nil {
				t.Error("Expected no plan on validation failure")
			}
		})
	}
}

func TestDeriveDates_PerMode(t *testing.T) {
	t.Parallel()

	now := at(2026, time.October, 16, 10)

	period, err := NewPeriodPlan("Trip", PeriodSpring, nil, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if period.PeriodStart() == nil || period.PeriodEnd() == nil {
		t.Fatal("Expected period plan to have an interval")
	}
	if period.Deadline() != nil {
		t.Error("Expected period plan to have no deadline")
	}
	if period.PeriodLabel() != "春" {
		t.Errorf("Expected season label, got %q", period.PeriodLabel())
	}

	deadline, err := NewDeadlinePlan("Renew passport", DeadlineThreeMonths, nil, nil, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !deadline.PeriodStart().Equal(now) {
		t.Errorf("Expected deadline plan to start at now, got %v", deadline.PeriodStart())
	}
	if !deadline.PeriodEnd().Equal(*deadline.Deadline()) {
		t.Error("Expected period end to equal deadline")
	}
	if want := at(2027, time.January, 16, 10); !deadline.Deadline().Equal(want) {
		t.Errorf("Expected deadline %v, got %v", want, deadline.Deadline())
	}

	anytime, err := NewAnytimePlan("Learn piano", strPtr("  someday  "), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if anytime.PeriodStart() != nil || anytime.PeriodEnd() != nil || anytime.Deadline() != nil {
		t.Error("Expected anytime plan to have no derived dates")
	}
	if anytime.Memo == nil || *anytime.Memo != "someday" {
		t.Errorf("Expected trimmed memo, got %v", anytime.Memo)
	}
}

func TestDeriveDates_Idempotent(t *testing.T) {
	t.Parallel()

	now := at(2026, time.October, 16, 10)
	custom := at(2026, time.December, 24, 0)
	modes := []TimeMode{
		PeriodMode{Preset: PeriodThisWeek},
		PeriodMode{Preset: PeriodWinter},
		DeadlineMode{Preset: DeadlineOneYear},
		DeadlineMode{Preset: DeadlineCustom, CustomDate: &custom},
		AnytimeMode{},
	}

	for _, mode := range modes {
		first, err := DeriveDates(mode, now)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		second, err := DeriveDates(mode, now)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Expected identical derivations for %v, got %v and %v", mode, first, second)
		}
	}
}

func TestPlan_SetTimeModeRederives(t *testing.T) {
	t.Parallel()

	created := at(2026, time.October, 16, 10)
	later := created.Add(time.Hour)

	plan, err := NewPeriodPlan("Trip", PeriodSpring, nil, created)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := plan.SetAnytime(later); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if plan.PeriodStart() != nil || plan.PeriodLabel() != "" {
		t.Error("Expected anytime switch to clear derived fields and label")
	}
	if !plan.UpdatedAt.Equal(later) {
		t.Errorf("Expected updatedAt %v, got %v", later, plan.UpdatedAt)
	}

	// a failed switch leaves the plan untouched
	if err := plan.SetDeadline(DeadlineCustom, nil, later.Add(time.Hour)); !errors.Is(err, ErrMissingCustomDate) {
		t.Fatalf("Expected ErrMissingCustomDate, got %v", err)
	}
	if plan.Kind() != TimeModeAnytime || !plan.UpdatedAt.Equal(later) {
		t.Error("Expected failed switch to leave plan unchanged")
	}

	if err := plan.SetDeadline(DeadlineOneMonth, nil, later); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := plan.PeriodPreset(); ok {
		t.Error("Expected period preset to be cleared")
	}
	if preset, ok := plan.DeadlinePreset(); !ok || preset != DeadlineOneMonth {
		t.Errorf("Expected oneMonth deadline preset, got %v", preset)
	}
}

func TestPlan_Toggles(t *testing.T) {
	t.Parallel()

	now := at(2026, time.October, 16, 10)
	plan, err := NewAnytimePlan("Learn piano", nil, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	plan.ToggleCompleted(now.Add(time.Minute))
	plan.ToggleArchived(now.Add(2 * time.Minute))
	if !plan.IsCompleted || !plan.IsArchived || plan.IsActive() {
		t.Error("Expected plan to be completed and archived")
	}
	plan.ToggleCompleted(now.Add(3 * time.Minute))
	if plan.IsCompleted {
		t.Error("Expected second toggle to clear completion")
	}
	if !plan.UpdatedAt.Equal(now.Add(3 * time.Minute)) {
		t.Errorf("Expected updatedAt to be bumped, got %v", plan.UpdatedAt)
	}

	if err := plan.Rename(" ", now); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("Expected ErrEmptyTitle, got %v", err)
	}
}

func TestPlanRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	now := at(2026, time.October, 16, 10)
	custom := at(2026, time.December, 24, 0)

	plans := []*Plan{}
	for _, build := range []func() (*Plan, error){
		func() (*Plan, error) { return NewPeriodPlan("Trip", PeriodWinter, strPtr("Hokkaido"), now) },
		func() (*Plan, error) { return NewPeriodPlan("Clean garage", PeriodNextMonth, nil, now) },
		func() (*Plan, error) { return NewDeadlinePlan("Gift", DeadlineCustom, &custom, nil, now) },
		func() (*Plan, error) { return NewAnytimePlan("Learn piano", nil, now) },
	} {
		p, err := build()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		plans = append(plans, p)
	}

	for _, plan := range plans {
		data, err := json.Marshal(plan)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		var decoded Plan
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(plan.Record(), decoded.Record()) {
			t.Errorf("Expected %+v, got %+v", plan.Record(), decoded.Record())
		}
	}

	rec := plans[1].Record()
	if rec.PeriodLabel != nil {
		t.Errorf("Expected no label for relative preset, got %q", *rec.PeriodLabel)
	}
}

func TestPlanRecord_TruncatesToStoragePrecision(t *testing.T) {
	t.Parallel()

	plan, err := NewPeriodPlan("Clean garage", PeriodThisMonth, nil, at(2026, time.March, 2, 9))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	rec := plan.Record()

	want := time.Date(2026, time.March, 31, 23, 59, 59, 999999000, time.UTC)
	if !rec.PeriodEnd.Equal(want) {
		t.Errorf("Expected end %v, got %v", want, rec.PeriodEnd)
	}
	if rec.PeriodEnd.Round(StoragePrecision).Month() != time.March {
		t.Error("Expected stored end to stay in March after rounding")
	}
	if !plan.PeriodEnd().Equal(want.Add(999 * time.Nanosecond)) {
		t.Error("Expected the plan itself to keep its derived end")
	}
}

func TestPlanFromRecord_RejectsMixedModes(t *testing.T) {
	t.Parallel()

	spring := PeriodSpring
	oneYear := DeadlineOneYear
	now := at(2026, time.October, 16, 10)

	tests := []struct {
		name   string
		record PlanRecord
	}{
		{"period with deadline preset", PlanRecord{Title: "x", TimeMode: TimeModePeriod, PeriodPreset: &spring, DeadlinePreset: &oneYear, PeriodStart: &now, PeriodEnd: &now}},
		{"anytime with preset", PlanRecord{Title: "x", TimeMode: TimeModeAnytime, PeriodPreset: &spring}},
		{"deadline without preset", PlanRecord{Title: "x", TimeMode: TimeModeDeadline}},
		{"unknown mode", PlanRecord{Title: "x", TimeMode: "sometimes"}},
		{"empty title", PlanRecord{TimeMode: TimeModeAnytime}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := PlanFromRecord(tt.record); !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestParseTimeMode(t *testing.T) {
	t.Parallel()

	custom := time.Date(2027, 1, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		kind     string
		preset   string
		custom   *time.Time
		wantKind TimeModeKind
		wantErr  bool
	}{
		{name: "period", kind: "period", preset: "winter", wantKind: TimeModePeriod},
		{name: "deadline", kind: "deadline", preset: "threeMonths", wantKind: TimeModeDeadline},
		{name: "custom deadline", kind: "deadline", preset: "custom", custom: &custom, wantKind: TimeModeDeadline},
		{name: "anytime ignores preset", kind: "anytime", preset: "spring", wantKind: TimeModeAnytime},
		{name: "unknown kind", kind: "eventually", wantErr: true},
		{name: "period without preset", kind: "period", wantErr: true},
		{name: "deadline bogus preset", kind: "deadline", preset: "bogus", wantErr: true},
		{name: "custom without date", kind: "deadline", preset: "custom", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mode, err := ParseTimeMode(tt.kind, tt.preset, tt.custom)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if mode.Kind() != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, mode.Kind())
			}
		})
	}
}
