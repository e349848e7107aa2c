package availability

import (
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
}

func TestDaySlots_NoAppointments(t *testing.T) {
	d := day(t)
	slots := DaySlots(d.Add(8*time.Hour), d.Add(10*time.Hour), time.Hour, nil)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(d.Add(8*time.Hour)) || !slots[0].Available {
		t.Fatalf("expected 08:00 available, got %+v", slots[0])
	}
	if !slots[1].Start.Equal(d.Add(9*time.Hour)) || !slots[1].Available {
		t.Fatalf("expected 09:00 available, got %+v", slots[1])
	}
}

func TestDaySlots_PartialOverlapOccupies(t *testing.T) {
	d := day(t)
	// Appointment 09:00-09:30 occupies the whole 09:00 slot.
	busy := []Interval{{Start: d.Add(9 * time.Hour), End: d.Add(9*time.Hour + 30*time.Minute)}}
	slots := DaySlots(d.Add(8*time.Hour), d.Add(10*time.Hour), time.Hour, busy)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Available {
		t.Fatal("08:00 should be available")
	}
	if slots[1].Available {
		t.Fatal("09:00 should be occupied")
	}
}

func TestDaySlots_DegenerateWindow(t *testing.T) {
	d := day(t)
	if slots := DaySlots(d.Add(10*time.Hour), d.Add(8*time.Hour), time.Hour, nil); len(slots) != 0 {
		t.Fatalf("reversed window should yield no slots, got %d", len(slots))
	}
	if slots := DaySlots(d.Add(8*time.Hour), d.Add(8*time.Hour), time.Hour, nil); len(slots) != 0 {
		t.Fatalf("empty window should yield no slots, got %d", len(slots))
	}
	// Window shorter than one slot.
	if slots := DaySlots(d.Add(8*time.Hour), d.Add(8*time.Hour+30*time.Minute), time.Hour, nil); len(slots) != 0 {
		t.Fatalf("short window should yield no slots, got %d", len(slots))
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	d := day(t)
	a1, a2 := d.Add(9*time.Hour), d.Add(10*time.Hour)
	b1, b2 := d.Add(10*time.Hour), d.Add(11*time.Hour)
	if Overlaps(a1, a2, b1, b2) {
		t.Fatal("back-to-back intervals must not overlap")
	}
	if !Overlaps(a1, a2, d.Add(9*time.Hour+59*time.Minute), b2) {
		t.Fatal("intervals sharing one minute must overlap")
	}
}
