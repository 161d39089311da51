package planner

import (
	"time"

	"github.com/benvon/soonish/internal/calendar"
	"github.com/benvon/soonish/internal/models"
)

// BoardEntry is a plan together with its display texts at GeneratedAt
type BoardEntry struct {
	Plan          *models.Plan `json:"plan"`
	PeriodText    string       `json:"period_text,omitempty"`
	RemainingText string       `json:"remaining_text,omitempty"`
	DeadlineNear  bool         `json:"deadline_near"`
}

// BoardSection is one visible bucket with its ranked plans
type BoardSection struct {
	Bucket      Bucket       `json:"bucket"`
	DisplayName string       `json:"display_name"`
	Entries     []BoardEntry `json:"entries"`
}

// Board is the full classified and ranked view of the plan list at one
// instant. It stays accurate until ValidUntil: the next local midnight or
// the first moment an entry expires or its whole-day count ticks over,
// whichever comes first.
type Board struct {
	GeneratedAt time.Time      `json:"generated_at"`
	ValidUntil  time.Time      `json:"valid_until"`
	Sections    []BoardSection `json:"sections"`
	Someday     []BoardEntry   `json:"someday"`
}

// BuildBoard classifies plans into the buckets visible at now, ranking each
// bucket by SortKey and the anytime backlog oldest first. A plan may appear
// in more than one bucket.
func BuildBoard(plans []*models.Plan, now time.Time) *Board {
	board := &Board{
		GeneratedAt: now,
		Sections:    make([]BoardSection, 0, 3),
	}
	for _, bucket := range VisibleBuckets(now) {
		ranked := SortByDefault(Filter(plans, bucket, now), now)
		board.Sections = append(board.Sections, BoardSection{
			Bucket:      bucket,
			DisplayName: bucket.DisplayName(),
			Entries:     entries(ranked, now),
		})
	}
	board.Someday = entries(SortOldestFirst(Someday(plans), now), now)
	board.ValidUntil = validUntil(board, now)
	return board
}

// Fresh reports whether the board still describes the plan list at now
func (b *Board) Fresh(now time.Time) bool {
	return !now.Before(b.GeneratedAt) && now.Before(b.ValidUntil)
}

func validUntil(board *Board, now time.Time) time.Time {
	until := calendar.StartOfDay(now).AddDate(0, 0, 1)
	for _, section := range board.Sections {
		for _, e := range section.Entries {
			if next, ok := nextChange(e.Plan, now); ok && next.Before(until) {
				until = next
			}
		}
	}
	return until
}

// nextChange returns the first instant after now at which the plan's bucket
// membership or its deadline day count differs from what it is at now
func nextChange(plan *models.Plan, now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	consider := func(t time.Time) {
		if !t.After(now) {
			t = now.Add(time.Nanosecond)
		}
		if !found || t.Before(next) {
			next, found = t, true
		}
	}

	if end := plan.PeriodEnd(); end != nil && !end.Before(now) {
		consider(end.Add(time.Nanosecond))
	}
	if d := plan.Deadline(); d != nil && !d.Before(now) {
		local := d.In(now.Location())
		// the day count drops once the clock passes the deadline's time of day
		tick := local.AddDate(0, 0, -calendar.DaysBetween(now, local)).Add(time.Nanosecond)
		consider(tick)
	}
	return next, found
}

// Section returns the section for bucket, if visible
func (b *Board) Section(bucket Bucket) (BoardSection, bool) {
	for _, s := range b.Sections {
		if s.Bucket == bucket {
			return s, true
		}
	}
	return BoardSection{}, false
}

func entries(plans []*models.Plan, now time.Time) []BoardEntry {
	out := make([]BoardEntry, 0, len(plans))
	for _, p := range plans {
		out = append(out, BoardEntry{
			Plan:          p,
			PeriodText:    PeriodDisplayText(p, now),
			RemainingText: RemainingText(p, now),
			DeadlineNear:  IsDeadlineNear(p, now),
		})
	}
	return out
}
