package models

import (
	"time"

	"github.com/benvon/soonish/internal/calendar"
)

// DeadlinePreset is a coarse "by roughly" specifier
type DeadlinePreset string

const (
	DeadlineOneMonth    DeadlinePreset = "oneMonth"
	DeadlineThreeMonths DeadlinePreset = "threeMonths"
	DeadlineSixMonths   DeadlinePreset = "sixMonths"
	DeadlineOneYear     DeadlinePreset = "oneYear"
	DeadlineCustom      DeadlinePreset = "custom"
)

var deadlinePresets = []DeadlinePreset{
	DeadlineOneMonth,
	DeadlineThreeMonths,
	DeadlineSixMonths,
	DeadlineOneYear,
	DeadlineCustom,
}

var deadlineDisplayNames = map[DeadlinePreset]string{
	DeadlineOneMonth:    "1ヶ月後くらいに",
	DeadlineThreeMonths: "3ヶ月後くらいに",
	DeadlineSixMonths:   "半年後くらいに",
	DeadlineOneYear:     "1年後くらいに",
	DeadlineCustom:      "自分で決める",
}

// DeadlinePresets returns every deadline preset in display order
func DeadlinePresets() []DeadlinePreset {
	out := make([]DeadlinePreset, len(deadlinePresets))
	copy(out, deadlinePresets)
	return out
}

// ParseDeadlinePreset looks up a preset by its canonical storage name
func ParseDeadlinePreset(name string) (DeadlinePreset, bool) {
	p := DeadlinePreset(name)
	return p, p.Valid()
}

func (p DeadlinePreset) Valid() bool {
	_, ok := deadlineDisplayNames[p]
	return ok
}

func (p DeadlinePreset) DisplayName() string {
	return deadlineDisplayNames[p]
}

// Resolve returns the deadline p denotes relative to now. Custom has no
// intrinsic deadline and reports false; the caller must supply a date.
func (p DeadlinePreset) Resolve(now time.Time) (time.Time, bool) {
	switch p {
	case DeadlineOneMonth:
		return calendar.AddMonths(now, 1), true
	case DeadlineThreeMonths:
		return calendar.AddMonths(now, 3), true
	case DeadlineSixMonths:
		return calendar.AddMonths(now, 6), true
	case DeadlineOneYear:
		return calendar.AddYears(now, 1), true
	}
	return time.Time{}, false
}
