// Package streak maintains the count of consecutive days with an entry.
package streak

import (
	"sort"

	"github.com/mesh-intelligence/daybook/pkg/types"
)

// State is the persisted streak summary.
type State = types.StreakState

// Advance returns the state after an entry is saved for day.
//
//	no previous entry        -> current = 1
//	same day as last entry   -> unchanged
//	day after last entry     -> current + 1
//	anything else            -> current = 1
//
// Longest never decreases and LastDate becomes day.
func Advance(s State, day types.Date) State {
	switch {
	case s.LastDate == nil:
		s.Current = 1
	case *s.LastDate == day:
		return s
	case day.DaysSince(*s.LastDate) == 1:
		s.Current++
	default:
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	last := day
	s.LastDate = &last
	return s
}

// Reset zeroes the current streak and keeps the longest. The next entry
// starts a new streak at 1.
func Reset(s State) State {
	return State{Longest: s.Longest}
}

// Recompute rebuilds the state from every entry date. Dates are sorted and
// folded through Advance, so the result matches what incremental updates in
// date order would have produced.
func Recompute(dates []types.Date) State {
	sorted := make([]types.Date, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var s State
	for _, d := range sorted {
		s = Advance(s, d)
	}
	return s
}

// Milestone is a streak length worth celebrating.
type Milestone struct {
	Days  int    `json:"days"`
	Label string `json:"label"`
}

// Milestones in ascending order.
var Milestones = []Milestone{
	{7, "beginner"},
	{14, "progressing"},
	{30, "one month"},
	{60, "two months"},
	{100, "hundred days"},
	{365, "one year"},
}

// Reached returns the milestones at or below days.
func Reached(days int) []Milestone {
	var out []Milestone
	for _, m := range Milestones {
		if m.Days > days {
			break
		}
		out = append(out, m)
	}
	return out
}

// Next returns the first milestone above days, or false when all are reached.
func Next(days int) (Milestone, bool) {
	for _, m := range Milestones {
		if m.Days > days {
			return m, true
		}
	}
	return Milestone{}, false
}
