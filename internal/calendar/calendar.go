// Package calendar provides the date-interval primitives every temporal rule
// in the planner is built on. All functions are pure: they take the reference
// instant explicitly and use its location as the local calendar. Weeks start
// on Sunday and interval ends are inclusive at the last nanosecond of the day.
package calendar

import "time"

// Season identifies one of the four calendar-independent seasons.
type Season int

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999999999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}

// StartOfWeek returns midnight of the Sunday on or before now.
func StartOfWeek(now time.Time) time.Time {
	today := StartOfDay(now)
	return today.AddDate(0, 0, -int(today.Weekday()))
}

// EndOfWeek returns the end of the Saturday following StartOfWeek.
func EndOfWeek(now time.Time) time.Time {
	return EndOfDay(StartOfWeek(now).AddDate(0, 0, 6))
}

func StartOfMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

func EndOfMonth(now time.Time) time.Time {
	return StartOfMonth(now).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func StartOfYear(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

func EndOfYear(now time.Time) time.Time {
	return time.Date(now.Year(), time.December, 31, 23, 59, 59, 999999999, now.Location())
}

// NextMonthStart returns the first instant of the month after now's month.
func NextMonthStart(now time.Time) time.Time {
	return StartOfMonth(now).AddDate(0, 1, 0)
}

// NextMonthEnd returns the last instant of the month after now's month.
func NextMonthEnd(now time.Time) time.Time {
	return EndOfMonth(NextMonthStart(now))
}

// MonthAfterNextStart returns StartOfMonth shifted forward by two months.
func MonthAfterNextStart(now time.Time) time.Time {
	return StartOfMonth(now).AddDate(0, 2, 0)
}

func NextYearStart(now time.Time) time.Time {
	return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, now.Location())
}

func NextYearEnd(now time.Time) time.Time {
	return time.Date(now.Year()+1, time.December, 31, 23, 59, 59, 999999999, now.Location())
}

// SeasonRangeInYear returns the inclusive range of s starting in the given
// year. Winter starts on December 1 of year and ends on the last day of
// February of year+1.
func SeasonRangeInYear(s Season, year int, loc *time.Location) (start, end time.Time) {
	var startMonth time.Month
	switch s {
	case Spring:
		startMonth = time.March
	case Summer:
		startMonth = time.June
	case Autumn:
		startMonth = time.September
	default:
		startMonth = time.December
	}
	start = time.Date(year, startMonth, 1, 0, 0, 0, 0, loc)
	// day 0 of the month after the season is its last day
	end = EndOfDay(time.Date(year, startMonth+3, 0, 0, 0, 0, 0, loc))
	return start, end
}

// SeasonRange returns the range of s in now's year. When that range has
// already ended, the following year's range is returned instead so a season
// always refers to its next occurrence.
func SeasonRange(s Season, now time.Time) (start, end time.Time) {
	start, end = SeasonRangeInYear(s, now.Year(), now.Location())
	if end.Before(now) {
		return SeasonRangeInYear(s, now.Year()+1, now.Location())
	}
	return start, end
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// AddYears adds n calendar years to t with the same clamping as AddMonths.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// DaysBetween returns the number of whole calendar days from from to to in
// from's location, truncated toward zero. It is negative when to is before
// from. Days are counted by date, so a 23 or 25 hour DST day still counts as
// one.
func DaysBetween(from, to time.Time) int {
	to = to.In(from.Location())
	days := civilDay(to) - civilDay(from)
	switch c := compareClock(to, from); {
	case days > 0 && c < 0:
		days--
	case days < 0 && c > 0:
		days++
	}
	return days
}

// civilDay numbers the wall-clock date of t independently of its offset
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// compareClock orders the wall-clock times of day of a and b
func compareClock(a, b time.Time) int {
	ca := time.Duration(a.Hour())*time.Hour + time.Duration(a.Minute())*time.Minute +
		time.Duration(a.Second())*time.Second + time.Duration(a.Nanosecond())
	cb := time.Duration(b.Hour())*time.Hour + time.Duration(b.Minute())*time.Minute +
		time.Duration(b.Second())*time.Second + time.Duration(b.Nanosecond())
	switch {
	case ca < cb:
		return -1
	case ca > cb:
		return 1
	}
	return 0
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
