// Package timeslot implements the slot grid arithmetic for doctor
// availability windows. All times are minute-of-day integers so that
// "HH:MM" wall-clock values round-trip exactly, with no timezone or
// floating point involved. Dates are plain "YYYY-MM-DD" calendar days.
package timeslot

import (
	"fmt"
	"sort"
	"time"
)

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"

	// MinSlotDuration is the smallest bookable slot a window may declare.
	MinSlotDuration = 5

	minutesPerDay = 24 * 60
)

// Slot is one bookable interval, half-open [Start, End), both in
// minutes from midnight. Slots are derived values: they are recomputed
// from windows on every query and never stored.
type Slot struct {
	Start int
	End   int
}

// Duration returns the slot length in minutes.
func (s Slot) Duration() int { return s.End - s.Start }

// Overlaps reports whether two half-open intervals intersect.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Slot) String() string {
	return FormatClock(s.Start) + "-" + FormatClock(s.End)
}

// ParseClock parses a 24-hour "HH:MM" string into minutes from midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse(clockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight back to "HH:MM".
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseDate validates a "YYYY-MM-DD" calendar date and returns it in
// canonical form. No timezone normalization happens here or anywhere
// else: the clinic's wall-clock date is authoritative.
func ParseDate(v string) (string, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return t.Format(dateLayout), nil
}

// ValidClock reports whether m is a representable minute of day.
func ValidClock(m int) bool { return m >= 0 && m < minutesPerDay }

// Generate walks a window [start, end) forward in duration-minute steps
// and emits one slot per step. A trailing remainder shorter than the
// duration is dropped, so a 09:00-09:45 window with 30-minute slots
// yields only 09:00-09:30. A window shorter than one slot yields nil.
func Generate(start, end, duration int) []Slot {
	if duration <= 0 || end <= start {
		return nil
	}
	var slots []Slot
	for cur := start; cur+duration <= end; cur += duration {
		slots = append(slots, Slot{Start: cur, End: cur + duration})
	}
	return slots
}

// Dedupe removes slots that repeat an exact (Start, End) pair.
// Overlapping windows for the same doctor and date are tolerated, so
// the same candidate can be generated more than once.
func Dedupe(slots []Slot) []Slot {
	seen := make(map[Slot]struct{}, len(slots))
	out := slots[:0]
	for _, s := range slots {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Subtract drops every candidate that overlaps an occupied interval.
// Exact-pair matches are the common case, but windows with differing
// durations can produce candidates that straddle a booked slot, and
// those must never be offered either.
func Subtract(candidates, occupied []Slot) []Slot {
	out := candidates[:0]
	for _, c := range candidates {
		if !OverlapsAny(c, occupied) {
			out = append(out, c)
		}
	}
	return out
}

// OverlapsAny reports whether s intersects any interval in set.
func OverlapsAny(s Slot, set []Slot) bool {
	for _, o := range set {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

// SortAscending orders slots by start time, then end time.
func SortAscending(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].End < slots[j].End
	})
}

// Contains reports whether want is an exact member of the grid.
func Contains(grid []Slot, want Slot) bool {
	for _, s := range grid {
		if s == want {
			return true
		}
	}
	return false
}
