package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
		StatusCompleted: {},
		StatusCancelled: {},
		StatusNoShow:    {},
	}

	all := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}
	for from, targets := range allowed {
		want := map[Status]bool{}
		for _, s := range targets {
			want[s] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != want[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want[to])
			}
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusConfirmed.Terminal() {
		t.Fatal("pending and confirmed must not be terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("confirmed")
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if s != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", s)
	}
	if _, err := ParseStatus("rescheduled"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
