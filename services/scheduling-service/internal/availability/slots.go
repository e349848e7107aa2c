package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is one fixed-size candidate within a working-hours window, annotated
// with whether a booking of that size would fit.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. This is the single overlap definition shared by
// slot generation and booking conflict checks.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DaySlots returns the ordered candidate slots of length duration starting at
// windowStart and stepping by duration, up to the last slot whose end does not
// exceed windowEnd. A slot is occupied when its interval intersects any busy
// interval; partial overlap counts as occupied.
//
// Degenerate windows (windowEnd <= windowStart, or a window shorter than one
// slot) yield an empty result, not an error. All times are expected to be in
// the same location (timezone).
func DaySlots(windowStart, windowEnd time.Time, duration time.Duration, busy []Interval) []Slot {
	if duration <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []Slot
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(duration) {
		end := t.Add(duration)
		slots = append(slots, Slot{
			Start:     t,
			End:       end,
			Available: !overlapsAny(t, end, busy),
		})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
