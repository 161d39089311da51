package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func endOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 999999999, time.UTC)
}

func TestWeekBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "midweek",
			now:       date(2026, time.October, 14, 15, 30), // Wednesday
			wantStart: date(2026, time.October, 11, 0, 0),
			wantEnd:   endOf(2026, time.October, 17),
		},
		{
			name:      "sunday is the first day",
			now:       date(2026, time.October, 11, 0, 0),
			wantStart: date(2026, time.October, 11, 0, 0),
			wantEnd:   endOf(2026, time.October, 17),
		},
		{
			name:      "saturday late evening",
			now:       date(2026, time.October, 17, 23, 59),
			wantStart: date(2026, time.October, 11, 0, 0),
			wantEnd:   endOf(2026, time.October, 17),
		},
		{
			name:      "week spanning a year boundary",
			now:       date(2026, time.January, 1, 9, 0), // Thursday
			wantStart: date(2025, time.December, 28, 0, 0),
			wantEnd:   endOf(2026, time.January, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StartOfWeek(tt.now); !got.Equal(tt.wantStart) {
				t.Errorf("StartOfWeek(%v) = %v, expected %v", tt.now, got, tt.wantStart)
			}
			if got := EndOfWeek(tt.now); !got.Equal(tt.wantEnd) {
				t.Errorf("EndOfWeek(%v) = %v, expected %v", tt.now, got, tt.wantEnd)
			}
		})
	}
}

func TestMonthAndYearBoundaries(t *testing.T) {
	t.Parallel()

	now := date(2028, time.February, 10, 12, 0) // leap year

	checks := []struct {
		name string
		got  time.Time
		want time.Time
	}{
		{"StartOfMonth", StartOfMonth(now), date(2028, time.February, 1, 0, 0)},
		{"EndOfMonth", EndOfMonth(now), endOf(2028, time.February, 29)},
		{"NextMonthStart", NextMonthStart(now), date(2028, time.March, 1, 0, 0)},
		{"NextMonthEnd", NextMonthEnd(now), endOf(2028, time.March, 31)},
		{"MonthAfterNextStart", MonthAfterNextStart(now), date(2028, time.April, 1, 0, 0)},
		{"StartOfYear", StartOfYear(now), date(2028, time.January, 1, 0, 0)},
		{"EndOfYear", EndOfYear(now), endOf(2028, time.December, 31)},
		{"NextYearStart", NextYearStart(now), date(2029, time.January, 1, 0, 0)},
		{"NextYearEnd", NextYearEnd(now), endOf(2029, time.December, 31)},
	}

	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("%s = %v, expected %v", c.name, c.got, c.want)
		}
	}
}

func TestMonthAfterNextStart_CrossesYear(t *testing.T) {
	t.Parallel()

	got := MonthAfterNextStart(date(2026, time.November, 20, 8, 0))
	want := date(2027, time.January, 1, 0, 0)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSeasonRangeInYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		season    Season
		year      int
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"spring", Spring, 2026, date(2026, time.March, 1, 0, 0), endOf(2026, time.May, 31)},
		{"summer", Summer, 2026, date(2026, time.June, 1, 0, 0), endOf(2026, time.August, 31)},
		{"autumn", Autumn, 2026, date(2026, time.September, 1, 0, 0), endOf(2026, time.November, 30)},
		{"winter", Winter, 2025, date(2025, time.December, 1, 0, 0), endOf(2026, time.February, 28)},
		{"winter into leap year", Winter, 2027, date(2027, time.December, 1, 0, 0), endOf(2028, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start, end := SeasonRangeInYear(tt.season, tt.year, time.UTC)
			if !start.Equal(tt.wantStart) {
				t.Errorf("Expected start %v, got %v", tt.wantStart, start)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("Expected end %v, got %v", tt.wantEnd, end)
			}
		})
	}
}

func TestSeasonRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		season    Season
		now       time.Time
		wantStart time.Time
	}{
		{"winter in december", Winter, date(2025, time.December, 15, 10, 0), date(2025, time.December, 1, 0, 0)},
		{"upcoming spring", Spring, date(2026, time.January, 5, 10, 0), date(2026, time.March, 1, 0, 0)},
		{"spring in progress", Spring, date(2026, time.April, 5, 10, 0), date(2026, time.March, 1, 0, 0)},
		{"spring already over", Spring, date(2026, time.October, 16, 10, 0), date(2027, time.March, 1, 0, 0)},
		{"winter in january uses this year's december", Winter, date(2026, time.January, 10, 10, 0), date(2026, time.December, 1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start, end := SeasonRange(tt.season, tt.now)
			if !start.Equal(tt.wantStart) {
				t.Errorf("Expected start %v, got %v", tt.wantStart, start)
			}
			if end.Before(tt.now) {
				t.Errorf("Expected season end %v to be on or after now %v", end, tt.now)
			}
		})
	}
}

func TestAddMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"plain", date(2026, time.March, 15, 9, 30), 1, date(2026, time.April, 15, 9, 30)},
		{"clamps to february", date(2026, time.January, 31, 9, 30), 1, date(2026, time.February, 28, 9, 30)},
		{"clamps to leap day", date(2028, time.January, 31, 0, 0), 1, date(2028, time.February, 29, 0, 0)},
		{"crosses year", date(2026, time.November, 30, 0, 0), 3, date(2027, time.February, 28, 0, 0)},
		{"six months", date(2026, time.August, 31, 0, 0), 6, date(2027, time.February, 28, 0, 0)},
		{"negative", date(2026, time.March, 31, 0, 0), -1, date(2026, time.February, 28, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := AddMonths(tt.in, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, expected %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestAddYears_LeapDay(t *testing.T) {
	t.Parallel()

	got := AddYears(date(2028, time.February, 29, 12, 0), 1)
	want := date(2029, time.February, 28, 12, 0)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()

	now := date(2026, time.October, 16, 12, 0)
	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same instant", now, 0},
		{"less than a day", now.Add(23 * time.Hour), 0},
		{"two days", now.Add(48 * time.Hour), 2},
		{"one day overdue", now.Add(-24 * time.Hour), -1},
		{"partial overdue truncates to zero", now.Add(-5 * time.Hour), 0},
		{"next day but earlier clock", date(2026, time.October, 18, 9, 0), 1},
		{"overdue by a day and a half", date(2026, time.October, 15, 0, 0), -1},
		{"one month later", AddMonths(now, 1), 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DaysBetween(now, tt.to); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Expected location, got %v", err)
	}

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{
			name: "spring forward month",
			from: time.Date(2026, time.March, 1, 12, 0, 0, 0, ny),
			to:   AddMonths(time.Date(2026, time.March, 1, 12, 0, 0, 0, ny), 1),
			want: 31,
		},
		{
			name: "23 hour day counts as one",
			from: time.Date(2026, time.March, 7, 12, 0, 0, 0, ny),
			to:   time.Date(2026, time.March, 8, 12, 0, 0, 0, ny),
			want: 1,
		},
		{
			name: "25 hour day counts as one",
			from: time.Date(2026, time.October, 31, 12, 0, 0, 0, ny),
			to:   time.Date(2026, time.November, 1, 12, 0, 0, 0, ny),
			want: 1,
		},
		{
			name: "overdue across fall back",
			from: time.Date(2026, time.November, 8, 12, 0, 0, 0, ny),
			to:   time.Date(2026, time.October, 25, 12, 0, 0, 0, ny),
			want: -14,
		},
		{
			name: "to in another zone is read in from's location",
			from: time.Date(2026, time.March, 7, 12, 0, 0, 0, ny),
			to:   time.Date(2026, time.March, 8, 16, 0, 0, 0, time.UTC), // 12:00 EDT
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DaysBetween(tt.from, tt.to); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
