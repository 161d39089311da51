package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlanRecord is the flat persisted and wire form of a Plan. Enumerated
// values use their canonical storage names.
type PlanRecord struct {
	ID                 uuid.UUID       `json:"id" yaml:"id" db:"id"`
	Title              string          `json:"title" yaml:"title" db:"title"`
	TimeMode           TimeModeKind    `json:"time_mode" yaml:"time_mode" db:"time_mode"`
	PeriodPreset       *PeriodPreset   `json:"period_preset,omitempty" yaml:"period_preset,omitempty" db:"period_preset"`
	PeriodLabel        *string         `json:"period_label,omitempty" yaml:"period_label,omitempty" db:"period_label"`
	DeadlinePreset     *DeadlinePreset `json:"deadline_preset,omitempty" yaml:"deadline_preset,omitempty" db:"deadline_preset"`
	CustomDeadlineDate *time.Time      `json:"custom_deadline_date,omitempty" yaml:"custom_deadline_date,omitempty" db:"custom_deadline_date"`
	PeriodStart        *time.Time      `json:"period_start,omitempty" yaml:"period_start,omitempty" db:"period_start"`
	PeriodEnd          *time.Time      `json:"period_end,omitempty" yaml:"period_end,omitempty" db:"period_end"`
	Deadline           *time.Time      `json:"deadline,omitempty" yaml:"deadline,omitempty" db:"deadline"`
	Memo               *string         `json:"memo,omitempty" yaml:"memo,omitempty" db:"memo"`
	IsCompleted        bool            `json:"is_completed" yaml:"is_completed" db:"is_completed"`
	IsArchived         bool            `json:"is_archived" yaml:"is_archived" db:"is_archived"`
	CreatedAt          time.Time       `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// StoragePrecision is the finest instant resolution the store keeps.
// Postgres timestamps hold microseconds and round anything finer, which would
// push an inclusive 23:59:59.999999999 end onto the next midnight.
const StoragePrecision = time.Microsecond

// Record flattens the plan into its persisted form. Instants are truncated
// to StoragePrecision so the store never rounds them up.
func (p *Plan) Record() PlanRecord {
	r := PlanRecord{
		ID:          p.ID,
		Title:       p.Title,
		TimeMode:    p.Kind(),
		PeriodStart: storedTime(p.derived.PeriodStart),
		PeriodEnd:   storedTime(p.derived.PeriodEnd),
		Deadline:    storedTime(p.derived.Deadline),
		IsCompleted: p.IsCompleted,
		IsArchived:  p.IsArchived,
		CreatedAt:   p.CreatedAt.Truncate(StoragePrecision),
		UpdatedAt:   p.UpdatedAt.Truncate(StoragePrecision),
	}
	if p.Memo != nil {
		m := *p.Memo
		r.Memo = &m
	}

	switch m := p.Mode().(type) {
	case PeriodMode:
		preset := m.Preset
		r.PeriodPreset = &preset
		if label := m.Label(); label != "" {
			r.PeriodLabel = &label
		}
	case DeadlineMode:
		preset := m.Preset
		r.DeadlinePreset = &preset
		r.CustomDeadlineDate = storedTime(m.CustomDate)
	}
	return r
}

func storedTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := t.Truncate(StoragePrecision)
	return &c
}

// PlanFromRecord rebuilds a plan from its persisted form. Derived dates are
// restored as stored; the record must satisfy the mode exclusivity rules.
func PlanFromRecord(r PlanRecord) (*Plan, error) {
	mode, err := r.timeMode()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		ID:          r.ID,
		Title:       r.Title,
		Memo:        normalizeMemo(r.Memo),
		IsCompleted: r.IsCompleted,
		IsArchived:  r.IsArchived,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		mode:        mode,
	}
	if mode.Kind() != TimeModeAnytime {
		p.derived = DerivedDates{
			PeriodStart: copyTime(r.PeriodStart),
			PeriodEnd:   copyTime(r.PeriodEnd),
			Deadline:    copyTime(r.Deadline),
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r PlanRecord) timeMode() (TimeMode, error) {
	switch r.TimeMode {
	case TimeModePeriod:
		if r.PeriodPreset == nil || r.DeadlinePreset != nil {
			return nil, ErrInvalidTimeMode
		}
		return NewPeriodMode(*r.PeriodPreset)
	case TimeModeDeadline:
		if r.DeadlinePreset == nil || r.PeriodPreset != nil {
			return nil, ErrInvalidTimeMode
		}
		return NewDeadlineMode(*r.DeadlinePreset, r.CustomDeadlineDate)
	case TimeModeAnytime:
		if r.PeriodPreset != nil || r.DeadlinePreset != nil {
			return nil, ErrInvalidTimeMode
		}
		return AnytimeMode{}, nil
	}
	return nil, ErrInvalidTimeMode
}

func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var r PlanRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded, err := PlanFromRecord(r)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
