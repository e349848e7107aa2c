package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment. Cancellation is a terminal
// status, not a row deletion: cancelled appointments stay on record but no
// longer block the consultant's calendar.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// transitions holds the allowed next statuses per current status.
// Completed, cancelled and no_show are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether the normal API allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is a consultant/client meeting occupying a calendar interval.
// ConsultantID is immutable after creation. ClientID is empty for internal or
// blocked time. Start/End are half-open: an appointment ending at 10:00 does
// not conflict with one starting at 10:00.
type Appointment struct {
	ID           string
	ConsultantID string
	ClientID     string
	ReasonID     string
	Start        time.Time
	End          time.Time
	Status       Status
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
