package models

import (
	"time"

	"github.com/benvon/soonish/internal/calendar"
)

// PeriodPreset is a coarse "sometime during" specifier
type PeriodPreset string

const (
	PeriodThisWeek  PeriodPreset = "thisWeek"
	PeriodThisMonth PeriodPreset = "thisMonth"
	PeriodNextMonth PeriodPreset = "nextMonth"
	PeriodThisYear  PeriodPreset = "thisYear"
	PeriodNextYear  PeriodPreset = "nextYear"
	PeriodSpring    PeriodPreset = "spring"
	PeriodSummer    PeriodPreset = "summer"
	PeriodAutumn    PeriodPreset = "autumn"
	PeriodWinter    PeriodPreset = "winter"
)

var periodPresets = []PeriodPreset{
	PeriodThisWeek,
	PeriodThisMonth,
	PeriodNextMonth,
	PeriodThisYear,
	PeriodNextYear,
	PeriodSpring,
	PeriodSummer,
	PeriodAutumn,
	PeriodWinter,
}

var periodDisplayNames = map[PeriodPreset]string{
	PeriodThisWeek:  "今週",
	PeriodThisMonth: "今月",
	PeriodNextMonth: "来月",
	PeriodThisYear:  "今年",
	PeriodNextYear:  "来年",
	PeriodSpring:    "春",
	PeriodSummer:    "夏",
	PeriodAutumn:    "秋",
	PeriodWinter:    "冬",
}

// PeriodPresets returns every period preset in display order
func PeriodPresets() []PeriodPreset {
	out := make([]PeriodPreset, len(periodPresets))
	copy(out, periodPresets)
	return out
}

// ParsePeriodPreset looks up a preset by its canonical storage name
func ParsePeriodPreset(name string) (PeriodPreset, bool) {
	p := PeriodPreset(name)
	return p, p.Valid()
}

// Valid reports whether p is one of the known presets
func (p PeriodPreset) Valid() bool {
	_, ok := periodDisplayNames[p]
	return ok
}

func (p PeriodPreset) DisplayName() string {
	return periodDisplayNames[p]
}

// IsSeason reports whether p names a season rather than a relative span
func (p PeriodPreset) IsSeason() bool {
	_, ok := p.season()
	return ok
}

// Label returns the cached display label for p. Only seasons have one;
// relative presets drift with the current date and must be recomputed.
func (p PeriodPreset) Label() string {
	if p.IsSeason() {
		return p.DisplayName()
	}
	return ""
}

func (p PeriodPreset) season() (calendar.Season, bool) {
	switch p {
	case PeriodSpring:
		return calendar.Spring, true
	case PeriodSummer:
		return calendar.Summer, true
	case PeriodAutumn:
		return calendar.Autumn, true
	case PeriodWinter:
		return calendar.Winter, true
	}
	return 0, false
}

// Resolve returns the inclusive interval p denotes relative to now. When the
// nominal start falls after the end (the rest of the month fits inside this
// week, or there is no month left after next month this year), the interval
// starts today instead.
func (p PeriodPreset) Resolve(now time.Time) (start, end time.Time) {
	switch p {
	case PeriodThisWeek:
		start, end = calendar.StartOfWeek(now), calendar.EndOfWeek(now)
	case PeriodThisMonth:
		start = calendar.StartOfWeek(now).AddDate(0, 0, 7)
		end = calendar.EndOfMonth(now)
	case PeriodNextMonth:
		start, end = calendar.NextMonthStart(now), calendar.NextMonthEnd(now)
	case PeriodThisYear:
		start, end = calendar.MonthAfterNextStart(now), calendar.EndOfYear(now)
	case PeriodNextYear:
		start, end = calendar.NextYearStart(now), calendar.NextYearEnd(now)
	default:
		s, ok := p.season()
		if !ok {
			return time.Time{}, time.Time{}
		}
		return calendar.SeasonRange(s, now)
	}
	if start.After(end) {
		start = calendar.StartOfDay(now)
	}
	return start, end
}
