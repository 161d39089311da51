package models

import "time"

// TimeModeKind is the canonical storage name of a time mode
type TimeModeKind string

const (
	TimeModePeriod   TimeModeKind = "period"
	TimeModeDeadline TimeModeKind = "deadline"
	TimeModeAnytime  TimeModeKind = "anytime"
)

var timeModeDisplayNames = map[TimeModeKind]string{
	TimeModePeriod:   "だいたいの期間",
	TimeModeDeadline: "いつまでに",
	TimeModeAnytime:  "いつか",
}

// ParseTimeModeKind looks up a mode by its canonical storage name
func ParseTimeModeKind(name string) (TimeModeKind, bool) {
	k := TimeModeKind(name)
	_, ok := timeModeDisplayNames[k]
	return k, ok
}

func (k TimeModeKind) DisplayName() string {
	return timeModeDisplayNames[k]
}

// TimeMode is one of PeriodMode, DeadlineMode or AnytimeMode
type TimeMode interface {
	Kind() TimeModeKind
	isTimeMode()
}

// PeriodMode places a plan somewhere inside a preset interval
type PeriodMode struct {
	Preset PeriodPreset
}

// DeadlineMode gives a plan a deadline. CustomDate is set only for the
// custom preset.
type DeadlineMode struct {
	Preset     DeadlinePreset
	CustomDate *time.Time
}

// AnytimeMode is the undated draft state
type AnytimeMode struct{}

func (PeriodMode) Kind() TimeModeKind   { return TimeModePeriod }
func (DeadlineMode) Kind() TimeModeKind { return TimeModeDeadline }
func (AnytimeMode) Kind() TimeModeKind  { return TimeModeAnytime }

func (PeriodMode) isTimeMode()   {}
func (DeadlineMode) isTimeMode() {}
func (AnytimeMode) isTimeMode()  {}

// Label is the season label cached on the plan, empty for relative presets
func (m PeriodMode) Label() string {
	return m.Preset.Label()
}

// NewPeriodMode validates preset and returns the mode
func NewPeriodMode(preset PeriodPreset) (PeriodMode, error) {
	if !preset.Valid() {
		return PeriodMode{}, NewValidationError("period_preset", "unknown preset "+string(preset))
	}
	return PeriodMode{Preset: preset}, nil
}

// NewDeadlineMode validates preset and returns the mode. A custom date is
// required for the custom preset and dropped for every other preset.
func NewDeadlineMode(preset DeadlinePreset, customDate *time.Time) (DeadlineMode, error) {
	if !preset.Valid() {
		return DeadlineMode{}, NewValidationError("deadline_preset", "unknown preset "+string(preset))
	}
	if preset != DeadlineCustom {
		return DeadlineMode{Preset: preset}, nil
	}
	if customDate == nil || customDate.IsZero() {
		return DeadlineMode{}, ErrMissingCustomDate
	}
	d := *customDate
	return DeadlineMode{Preset: preset, CustomDate: &d}, nil
}

// ParseTimeMode builds a time mode from its storage names. preset is the
// period or deadline preset depending on kind and is ignored for anytime.
func ParseTimeMode(kind, preset string, customDate *time.Time) (TimeMode, error) {
	k, ok := ParseTimeModeKind(kind)
	if !ok {
		return nil, ErrInvalidTimeMode
	}
	switch k {
	case TimeModePeriod:
		if preset == "" {
			return nil, NewValidationError("period_preset", "required for period mode")
		}
		return NewPeriodMode(PeriodPreset(preset))
	case TimeModeDeadline:
		if preset == "" {
			return nil, NewValidationError("deadline_preset", "required for deadline mode")
		}
		return NewDeadlineMode(DeadlinePreset(preset), customDate)
	}
	return AnytimeMode{}, nil
}

func validateTimeMode(mode TimeMode) error {
	switch m := mode.(type) {
	case PeriodMode:
		_, err := NewPeriodMode(m.Preset)
		return err
	case DeadlineMode:
		_, err := NewDeadlineMode(m.Preset, m.CustomDate)
		return err
	case AnytimeMode:
		return nil
	}
	return ErrInvalidTimeMode
}

// DerivedDates are the concrete instants computed from a time mode
type DerivedDates struct {
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Deadline    *time.Time
}

// DeriveDates computes the derived fields for mode relative to now. It is
// pure: the same mode and now always yield the same result.
func DeriveDates(mode TimeMode, now time.Time) (DerivedDates, error) {
	if err := validateTimeMode(mode); err != nil {
		return DerivedDates{}, err
	}

	switch m := mode.(type) {
	case PeriodMode:
		start, end := m.Preset.Resolve(now)
		return DerivedDates{PeriodStart: &start, PeriodEnd: &end}, nil
	case DeadlineMode:
		start := now
		var deadline time.Time
		if m.Preset == DeadlineCustom {
			deadline = *m.CustomDate
		} else {
			deadline, _ = m.Preset.Resolve(now)
		}
		end := deadline
		return DerivedDates{PeriodStart: &start, PeriodEnd: &end, Deadline: &deadline}, nil
	}
	return DerivedDates{}, nil
}
