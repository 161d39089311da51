package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is a loosely-timed intention. The time mode and the dates derived
// from it are only reachable through methods so they never go stale.
type Plan struct {
	ID          uuid.UUID
	Title       string
	Memo        *string
	IsCompleted bool
	IsArchived  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	mode    TimeMode
	derived DerivedDates
}

// NewPlan builds a plan in the given mode and derives its dates from now
func NewPlan(title string, mode TimeMode, memo *string, now time.Time) (*Plan, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	derived, err := DeriveDates(mode, now)
	if err != nil {
		return nil, err
	}
	return &Plan{
		ID:        uuid.New(),
		Title:     title,
		Memo:      normalizeMemo(memo),
		CreatedAt: now,
		UpdatedAt: now,
		mode:      mode,
		derived:   derived,
	}, nil
}

func NewPeriodPlan(title string, preset PeriodPreset, memo *string, now time.Time) (*Plan, error) {
	mode, err := NewPeriodMode(preset)
	if err != nil {
		return nil, err
	}
	return NewPlan(title, mode, memo, now)
}

func NewDeadlinePlan(title string, preset DeadlinePreset, customDate *time.Time, memo *string, now time.Time) (*Plan, error) {
	mode, err := NewDeadlineMode(preset, customDate)
	if err != nil {
		return nil, err
	}
	return NewPlan(title, mode, memo, now)
}

func NewAnytimePlan(title string, memo *string, now time.Time) (*Plan, error) {
	return NewPlan(title, AnytimeMode{}, memo, now)
}

func (p *Plan) Mode() TimeMode {
	if p.mode == nil {
		return AnytimeMode{}
	}
	return p.mode
}

func (p *Plan) Kind() TimeModeKind {
	return p.Mode().Kind()
}

// PeriodPreset returns the preset of a period-mode plan
func (p *Plan) PeriodPreset() (PeriodPreset, bool) {
	m, ok := p.mode.(PeriodMode)
	return m.Preset, ok
}

// PeriodLabel returns the cached season label, empty for every other plan
func (p *Plan) PeriodLabel() string {
	if m, ok := p.mode.(PeriodMode); ok {
		return m.Label()
	}
	return ""
}

// DeadlinePreset returns the preset of a deadline-mode plan
func (p *Plan) DeadlinePreset() (DeadlinePreset, bool) {
	m, ok := p.mode.(DeadlineMode)
	return m.Preset, ok
}

func (p *Plan) CustomDeadlineDate() *time.Time {
	if m, ok := p.mode.(DeadlineMode); ok {
		return copyTime(m.CustomDate)
	}
	return nil
}

func (p *Plan) PeriodStart() *time.Time { return copyTime(p.derived.PeriodStart) }
func (p *Plan) PeriodEnd() *time.Time   { return copyTime(p.derived.PeriodEnd) }
func (p *Plan) Deadline() *time.Time    { return copyTime(p.derived.Deadline) }

// IsActive reports whether the plan is neither completed nor archived
func (p *Plan) IsActive() bool {
	return !p.IsCompleted && !p.IsArchived
}

// SetTimeMode switches the plan to mode and re-derives its dates. On error
// the plan is left unchanged.
func (p *Plan) SetTimeMode(mode TimeMode, now time.Time) error {
	derived, err := DeriveDates(mode, now)
	if err != nil {
		return err
	}
	p.mode = mode
	p.derived = derived
	p.UpdatedAt = now
	return nil
}

func (p *Plan) SetPeriod(preset PeriodPreset, now time.Time) error {
	mode, err := NewPeriodMode(preset)
	if err != nil {
		return err
	}
	return p.SetTimeMode(mode, now)
}

func (p *Plan) SetDeadline(preset DeadlinePreset, customDate *time.Time, now time.Time) error {
	mode, err := NewDeadlineMode(preset, customDate)
	if err != nil {
		return err
	}
	return p.SetTimeMode(mode, now)
}

func (p *Plan) SetAnytime(now time.Time) error {
	return p.SetTimeMode(AnytimeMode{}, now)
}

// Rederive recomputes the derived dates for the current mode relative to now
func (p *Plan) Rederive(now time.Time) error {
	return p.SetTimeMode(p.Mode(), now)
}

func (p *Plan) Rename(title string, now time.Time) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	p.Title = title
	p.UpdatedAt = now
	return nil
}

func (p *Plan) SetMemo(memo *string, now time.Time) {
	p.Memo = normalizeMemo(memo)
	p.UpdatedAt = now
}

func (p *Plan) ToggleCompleted(now time.Time) {
	p.IsCompleted = !p.IsCompleted
	p.UpdatedAt = now
}

func (p *Plan) ToggleArchived(now time.Time) {
	p.IsArchived = !p.IsArchived
	p.UpdatedAt = now
}

// Validate checks the invariants a plan must hold before it is stored
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if err := validateTimeMode(p.Mode()); err != nil {
		return err
	}
	if p.Kind() == TimeModePeriod {
		if p.derived.PeriodStart == nil || p.derived.PeriodEnd == nil {
			return NewValidationError("period_start", "period plans need a derived interval")
		}
		if p.derived.PeriodStart.After(*p.derived.PeriodEnd) {
			return NewValidationError("period_end", "must not be before period_start")
		}
	}
	return nil
}

// Clone returns a deep copy of the plan
func (p *Plan) Clone() *Plan {
	c := *p
	if p.Memo != nil {
		m := *p.Memo
		c.Memo = &m
	}
	if m, ok := p.mode.(DeadlineMode); ok {
		m.CustomDate = copyTime(m.CustomDate)
		c.mode = m
	}
	c.derived = DerivedDates{
		PeriodStart: copyTime(p.derived.PeriodStart),
		PeriodEnd:   copyTime(p.derived.PeriodEnd),
		Deadline:    copyTime(p.derived.Deadline),
	}
	return &c
}

func normalizeMemo(memo *string) *string {
	if memo == nil {
		return nil
	}
	m := strings.TrimSpace(*memo)
	if m == "" {
		return nil
	}
	return &m
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
