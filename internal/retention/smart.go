package retention

import (
	"fmt"
	"time"

	"github.com/dev-tams/backupprune/internal/artifact"
)

const (
	smartDays   = 7
	smartWeeks  = 4
	smartMonths = 12
)

// keepSmart implements grandfather-father-son retention: the newest
// artifact, plus the newest artifact of each of the last 7 calendar days,
// the last 4 ISO weeks and the last 12 calendar months. Buckets are
// evaluated in now's location.
func keepSmart(candidates []artifact.Artifact, now time.Time) []bool {
	keep := make([]bool, len(candidates))
	if len(candidates) == 0 {
		return keep
	}
	keep[0] = true

	loc := now.Location()
	daily := smartBuckets(now, smartDays, func(t time.Time, i int) string {
		return dayKey(t.AddDate(0, 0, -i))
	})
	weekly := smartBuckets(now, smartWeeks, func(t time.Time, i int) string {
		return weekKey(t.AddDate(0, 0, -7*i))
	})
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	monthly := smartBuckets(firstOfMonth, smartMonths, func(t time.Time, i int) string {
		return monthKey(t.AddDate(0, -i, 0))
	})

	// candidates are newest first, so the first artifact that lands in a
	// bucket is the newest one in it.
	for i, a := range candidates {
		t := a.CreatedAt.In(loc)
		if claim(daily, dayKey(t)) {
			keep[i] = true
		}
		if claim(weekly, weekKey(t)) {
			keep[i] = true
		}
		if claim(monthly, monthKey(t)) {
			keep[i] = true
		}
	}
	return keep
}

// smartBuckets maps each bucket key to whether it has been claimed yet.
func smartBuckets(from time.Time, n int, key func(time.Time, int) string) map[string]bool {
	b := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		b[key(from, i)] = false
	}
	return b
}

func claim(buckets map[string]bool, key string) bool {
	taken, ok := buckets[key]
	if !ok || taken {
		return false
	}
	buckets[key] = true
	return true
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func monthKey(t time.Time) string { return t.Format("2006-01") }
