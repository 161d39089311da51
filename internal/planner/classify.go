// Package planner classifies plans into display buckets, ranks them by
// urgency and turns extraction suggestions into plans. Every function takes
// the reference instant explicitly and mutates nothing.
package planner

import (
	"time"

	"github.com/benvon/soonish/internal/calendar"
	"github.com/benvon/soonish/internal/models"
)

// Bucket is a display category a plan may belong to
type Bucket string

const (
	BucketThisMonth       Bucket = "thisMonth"
	BucketNextMonth       Bucket = "nextMonth"
	BucketThisYear        Bucket = "thisYear"
	BucketNextYearOnwards Bucket = "nextYearOnwards"
)

var bucketDisplayNames = map[Bucket]string{
	BucketThisMonth:       "今月中",
	BucketNextMonth:       "来月中",
	BucketThisYear:        "今年中",
	BucketNextYearOnwards: "来年以降",
}

func (b Bucket) DisplayName() string {
	return bucketDisplayNames[b]
}

// ParseBucket looks up a bucket by name
func ParseBucket(name string) (Bucket, bool) {
	b := Bucket(name)
	_, ok := bucketDisplayNames[b]
	return b, ok
}

// VisibleBuckets returns the buckets shown at now. The third bucket is
// "this year" while two months from now is still in the current year and
// "next year onward" after that.
func VisibleBuckets(now time.Time) []Bucket {
	if calendar.AddMonths(now, 2).Year() == now.Year() {
		return []Bucket{BucketThisMonth, BucketNextMonth, BucketThisYear}
	}
	return []Bucket{BucketThisMonth, BucketNextMonth, BucketNextYearOnwards}
}

// Overlaps reports whether the closed intervals [s1,e1] and [s2,e2] share
// at least one instant. Touching endpoints overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !e1.Before(s2) && !s1.After(e2)
}

// BelongsTo reports whether plan is shown in bucket at now
func BelongsTo(plan *models.Plan, bucket Bucket, now time.Time) bool {
	if plan.IsArchived || plan.IsCompleted || plan.Kind() == models.TimeModeAnytime {
		return false
	}
	start, end := plan.PeriodStart(), plan.PeriodEnd()
	if start == nil || end == nil {
		return false
	}
	if end.Before(now) {
		return false
	}

	switch bucket {
	case BucketThisMonth:
		return Overlaps(*start, *end, calendar.StartOfMonth(now), calendar.EndOfMonth(now))
	case BucketNextMonth:
		return Overlaps(*start, *end, calendar.NextMonthStart(now), calendar.NextMonthEnd(now))
	case BucketThisYear:
		return Overlaps(*start, *end, calendar.MonthAfterNextStart(now), calendar.EndOfYear(now))
	case BucketNextYearOnwards:
		next := calendar.NextYearStart(now)
		return !start.Before(next) || !end.Before(next)
	}
	return false
}

// Filter returns the plans that belong to bucket at now, preserving order
func Filter(plans []*models.Plan, bucket Bucket, now time.Time) []*models.Plan {
	out := make([]*models.Plan, 0, len(plans))
	for _, p := range plans {
		if BelongsTo(p, bucket, now) {
			out = append(out, p)
		}
	}
	return out
}

// Active returns the plans that are neither completed nor archived
func Active(plans []*models.Plan) []*models.Plan {
	out := make([]*models.Plan, 0, len(plans))
	for _, p := range plans {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// Someday returns the active anytime plans
func Someday(plans []*models.Plan) []*models.Plan {
	out := make([]*models.Plan, 0)
	for _, p := range plans {
		if p.IsActive() && p.Kind() == models.TimeModeAnytime {
			out = append(out, p)
		}
	}
	return out
}
