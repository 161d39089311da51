package planner

import (
	"time"

	"github.com/benvon/soonish/internal/calendar"
	"github.com/benvon/soonish/internal/models"
)

const (
	TextThisWeek        = "今週中"
	TextThisMonth       = "今月中"
	TextNextMonth       = "来月中"
	TextThisYear        = "今年中"
	TextNextYearOnwards = "来年以降"
	TextSomeday         = "いつか"
	TextOverdue         = "期限切れ"
)

// deadlineNearDays is the horizon within which a deadline counts as near
const deadlineNearDays = 7

// PeriodDisplayText returns the coarse period label for plan at now, or ""
// when there is nothing to show. Deadline plans never show period text.
func PeriodDisplayText(plan *models.Plan, now time.Time) string {
	switch plan.Kind() {
	case models.TimeModeAnytime:
		return TextSomeday
	case models.TimeModeDeadline:
		return ""
	}

	if label := plan.PeriodLabel(); label != "" {
		return label
	}
	start := plan.PeriodStart()
	if start == nil {
		return ""
	}

	switch {
	case !start.After(calendar.EndOfWeek(now)):
		return TextThisWeek
	case !start.After(calendar.EndOfMonth(now)):
		return TextThisMonth
	case !start.After(calendar.NextMonthEnd(now)):
		return TextNextMonth
	case !start.After(calendar.EndOfYear(now)):
		return TextThisYear
	case !start.Before(calendar.NextYearStart(now)):
		return TextNextYearOnwards
	}
	return ""
}

// RemainingText returns the coarse remaining-time label of a deadline plan,
// or "" when the plan is not in deadline mode or has no preset.
func RemainingText(plan *models.Plan, now time.Time) string {
	preset, ok := plan.DeadlinePreset()
	if !ok || preset == "" {
		return ""
	}
	end := plan.PeriodEnd()
	if end == nil {
		return ""
	}

	switch {
	case end.Before(now):
		return TextOverdue
	case !end.After(calendar.EndOfWeek(now)):
		return TextThisWeek
	case !end.After(calendar.EndOfMonth(now)):
		return TextThisMonth
	case !end.After(calendar.NextMonthEnd(now)):
		return TextNextMonth
	case !end.After(calendar.EndOfYear(now)):
		return TextThisYear
	}
	return TextNextYearOnwards
}

// IsPeriodExpired reports whether the plan's interval ended before now
func IsPeriodExpired(plan *models.Plan, now time.Time) bool {
	end := plan.PeriodEnd()
	return end != nil && now.After(*end)
}

// IsDeadlineNear reports whether the deadline is between zero and seven
// whole days away.
func IsDeadlineNear(plan *models.Plan, now time.Time) bool {
	d := plan.Deadline()
	if d == nil {
		return false
	}
	days := calendar.DaysBetween(now, *d)
	return days >= 0 && days <= deadlineNearDays
}
