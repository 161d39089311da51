package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/soonish/internal/models"
)

// ErrInvalidPresetReference is matched by both invalid preset errors
var ErrInvalidPresetReference = errors.New("invalid preset reference")

// InvalidPeriodPresetError reports an unknown period preset name
type InvalidPeriodPresetError struct {
	Name string
}

func (e *InvalidPeriodPresetError) Error() string {
	return fmt.Sprintf("invalid period preset: %q", e.Name)
}

func (e *InvalidPeriodPresetError) Is(target error) bool {
	return target == ErrInvalidPresetReference
}

// InvalidDeadlinePresetError reports an unknown deadline preset name
type InvalidDeadlinePresetError struct {
	Name string
}

func (e *InvalidDeadlinePresetError) Error() string {
	return fmt.Sprintf("invalid deadline preset: %q", e.Name)
}

func (e *InvalidDeadlinePresetError) Is(target error) bool {
	return target == ErrInvalidPresetReference
}

// ToPlan validates a suggestion against the preset enumerations and builds
// the plan it describes. Unknown preset names are never replaced by a
// default. The custom deadline preset has no date in a suggestion and is
// rejected with models.ErrMissingCustomDate.
func ToPlan(s models.PlanSuggestion, now time.Time) (*models.Plan, error) {
	switch s.TimeMode.Kind {
	case models.TimeModePeriod:
		preset, ok := models.ParsePeriodPreset(s.TimeMode.Preset)
		if !ok {
			return nil, &InvalidPeriodPresetError{Name: s.TimeMode.Preset}
		}
		return models.NewPeriodPlan(s.Title, preset, s.Memo, now)
	case models.TimeModeDeadline:
		preset, ok := models.ParseDeadlinePreset(s.TimeMode.Preset)
		if !ok {
			return nil, &InvalidDeadlinePresetError{Name: s.TimeMode.Preset}
		}
		return models.NewDeadlinePlan(s.Title, preset, nil, s.Memo, now)
	case models.TimeModeAnytime:
		return models.NewAnytimePlan(s.Title, s.Memo, now)
	}
	return nil, models.ErrInvalidTimeMode
}
