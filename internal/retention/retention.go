// Package retention decides which backup artifacts to keep and which to
// delete. Every strategy is a pure function of the candidates, the policy
// and the current time.
package retention

import (
	"fmt"
	"strings"
	"time"

	"github.com/dev-tams/backupprune/internal/artifact"
)

type Mode int

const (
	ModeDays Mode = iota
	ModeCount
	ModeSmart
	ModeForever
)

func (m Mode) String() string {
	switch m {
	case ModeDays:
		return "days"
	case ModeCount:
		return "count"
	case ModeSmart:
		return "smart"
	case ModeForever:
		return "forever"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a configured mode name to a Mode. Unrecognized names yield
// ModeDays and ok=false; callers log the fallback.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "days":
		return ModeDays, true
	case "count":
		return ModeCount, true
	case "smart":
		return ModeSmart, true
	case "forever":
		return ModeForever, true
	default:
		return ModeDays, false
	}
}

type Policy struct {
	Mode      Mode
	KeepDays  int
	KeepCount int
}

func (p Policy) String() string {
	switch p.Mode {
	case ModeDays:
		return fmt.Sprintf("days (keep %d days)", p.KeepDays)
	case ModeCount:
		return fmt.Sprintf("count (keep latest %d)", p.KeepCount)
	case ModeSmart:
		return "smart (GFS: latest, 7 daily, 4 weekly, 12 monthly)"
	case ModeForever:
		return "forever (never delete)"
	default:
		return p.Mode.String()
	}
}

// Plan partitions the candidates. Both slices preserve candidate order.
type Plan struct {
	Keep   []artifact.Artifact
	Delete []artifact.Artifact
}

// Select applies p to candidates, which must be sorted newest first.
func Select(candidates []artifact.Artifact, p Policy, now time.Time) Plan {
	if len(candidates) == 0 {
		return Plan{}
	}

	var keep []bool
	switch p.Mode {
	case ModeForever:
		keep = keepAll(len(candidates))
	case ModeCount:
		keep = keepCount(candidates, p.KeepCount)
	case ModeSmart:
		keep = keepSmart(candidates, now)
	default:
		keep = keepDays(candidates, p.KeepDays, now)
	}

	var plan Plan
	for i, a := range candidates {
		if keep[i] {
			plan.Keep = append(plan.Keep, a)
		} else {
			plan.Delete = append(plan.Delete, a)
		}
	}
	return plan
}

func keepAll(n int) []bool {
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	return keep
}

// DaysCutoff returns the oldest creation time days mode keeps: now moved
// back days calendar days, time of day preserved.
func DaysCutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

func keepDays(candidates []artifact.Artifact, days int, now time.Time) []bool {
	cutoff := DaysCutoff(now, days)
	keep := make([]bool, len(candidates))
	for i, a := range candidates {
		keep[i] = !a.CreatedAt.Before(cutoff)
	}
	return keep
}

func keepCount(candidates []artifact.Artifact, count int) []bool {
	keep := make([]bool, len(candidates))
	for i := range candidates {
		keep[i] = i < count
	}
	return keep
}
