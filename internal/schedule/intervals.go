// Package schedule computes free calendar intervals and searches days for
// meeting availability.
package schedule

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidMinDuration is returned when a caller asks for free intervals
// with a non-positive minimum duration.
var ErrInvalidMinDuration = errors.New("schedule: minimum duration must be positive")

// BusyInterval is an occupied span reported by a calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeSlot is a contiguous open interval at least as long as the requested
// minimum duration.
type FreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// FreeIntervals returns the open gaps within [windowStart, windowEnd) that
// are at least minDuration long. The busy set may arrive unsorted and with
// overlaps; it is sorted by start time and merged during the sweep. Returned
// slots are disjoint, ordered by start time, and never overlap a busy
// interval.
func FreeIntervals(windowStart, windowEnd time.Time, busy []BusyInterval, minDuration time.Duration) ([]FreeSlot, error) {
	if minDuration <= 0 {
		return nil, ErrInvalidMinDuration
	}

	sorted := make([]BusyInterval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var slots []FreeSlot
	cursor := windowStart

	for _, b := range sorted {
		if gap := b.Start.Sub(cursor); gap >= minDuration {
			slots = append(slots, newFreeSlot(cursor, b.Start))
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if gap := windowEnd.Sub(cursor); gap >= minDuration {
		slots = append(slots, newFreeSlot(cursor, windowEnd))
	}

	return slots, nil
}

func newFreeSlot(start, end time.Time) FreeSlot {
	return FreeSlot{
		Start:           start,
		End:             end,
		DurationMinutes: int(end.Sub(start) / time.Minute),
	}
}
