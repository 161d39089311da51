package planner

import (
	"sort"
	"time"

	"github.com/benvon/soonish/internal/calendar"
	"github.com/benvon/soonish/internal/models"
)

// datelessBase is larger than any plausible creation time in epoch seconds,
// so dateless plans always rank after plans with a deadline.
const datelessBase = 1e12

// SortKey is the default ranking key; smaller sorts first. Plans with a
// deadline key on whole days remaining (negative when overdue). Dateless
// plans follow, newest first.
func SortKey(plan *models.Plan, now time.Time) float64 {
	if d := plan.Deadline(); d != nil {
		return float64(calendar.DaysBetween(now, *d))
	}
	return datelessBase - float64(plan.CreatedAt.Unix())
}

// SortKeyOldestFirst ranks deadlines like SortKey but orders dateless plans
// oldest first.
func SortKeyOldestFirst(plan *models.Plan, now time.Time) float64 {
	if d := plan.Deadline(); d != nil {
		return float64(calendar.DaysBetween(now, *d))
	}
	return float64(plan.CreatedAt.Unix())
}

// SortByDefault returns a copy of plans ordered by SortKey
func SortByDefault(plans []*models.Plan, now time.Time) []*models.Plan {
	return sortBy(plans, func(p *models.Plan) float64 { return SortKey(p, now) })
}

// SortOldestFirst returns a copy of plans ordered by SortKeyOldestFirst
func SortOldestFirst(plans []*models.Plan, now time.Time) []*models.Plan {
	return sortBy(plans, func(p *models.Plan) float64 { return SortKeyOldestFirst(p, now) })
}

// SortNewestFirst returns a copy of plans ordered by creation time, newest first
func SortNewestFirst(plans []*models.Plan) []*models.Plan {
	out := make([]*models.Plan, len(plans))
	copy(out, plans)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func sortBy(plans []*models.Plan, key func(*models.Plan) float64) []*models.Plan {
	keys := make(map[*models.Plan]float64, len(plans))
	for _, p := range plans {
		keys[p] = key(p)
	}
	out := make([]*models.Plan, len(plans))
	copy(out, plans)
	sort.SliceStable(out, func(i, j int) bool {
		return keys[out[i]] < keys[out[j]]
	})
	return out
}
