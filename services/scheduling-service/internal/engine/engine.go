package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/availability"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/model"
)

// Store is the persistence contract the engine depends on. Create and Update
// must be atomic with respect to the overlap rule: even after a clean
// FindOverlapping pre-check they may fail with *ConflictError when a
// concurrent write takes the interval first (the Postgres implementation
// backs this with an exclusion constraint).
type Store interface {
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	// FindOverlapping returns non-cancelled appointments for the consultant
	// intersecting [start, end), optionally excluding one appointment id.
	FindOverlapping(ctx context.Context, consultantID string, start, end time.Time, excludeID string) ([]model.Appointment, error)
	// FindInRange returns appointments of any status intersecting [from, to),
	// ascending by start.
	FindInRange(ctx context.Context, consultantID string, from, to time.Time) ([]model.Appointment, error)
	Create(ctx context.Context, appt *model.Appointment) error
	Update(ctx context.Context, appt *model.Appointment) error
}

// Engine implements the appointment lifecycle and the available-slot query.
// It holds no mutable state of its own; every operation is a function of its
// inputs plus store reads and writes, so it is safe under any number of
// concurrent requests.
type Engine struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

type CreateParams struct {
	ConsultantID string
	ClientID     string
	ReasonID     string
	Start        time.Time
	End          time.Time
	Notes        string
	// Status is the initial status. Empty means pending (client self-service
	// path). Staff may create directly as confirmed; any other initial status
	// is rejected.
	Status model.Status
}

func (e *Engine) Create(ctx context.Context, p CreateParams) (model.Appointment, error) {
	if p.ConsultantID == "" {
		return model.Appointment{}, validationf("consultant_id is required")
	}
	if p.ReasonID == "" {
		return model.Appointment{}, validationf("reason_id is required")
	}
	if p.Start.IsZero() || p.End.IsZero() || !p.End.After(p.Start) {
		return model.Appointment{}, validationf("end must be after start")
	}

	status := p.Status
	if status == "" {
		status = model.StatusPending
	}
	if status != model.StatusPending && status != model.StatusConfirmed {
		return model.Appointment{}, validationf("initial status must be pending or confirmed, got %q", status)
	}

	overlapping, err := e.store.FindOverlapping(ctx, p.ConsultantID, p.Start, p.End, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if len(overlapping) > 0 {
		return model.Appointment{}, &ConflictError{ConsultantID: p.ConsultantID, Start: p.Start, End: p.End}
	}

	appt := model.Appointment{
		ConsultantID: p.ConsultantID,
		ClientID:     p.ClientID,
		ReasonID:     p.ReasonID,
		Start:        p.Start,
		End:          p.End,
		Status:       status,
		Notes:        p.Notes,
	}
	if err := e.store.Create(ctx, &appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Patch is a partial update; nil fields are left unchanged. ConsultantID is
// immutable and therefore not patchable.
type Patch struct {
	ClientID *string
	ReasonID *string
	Start    *time.Time
	End      *time.Time
	Status   *model.Status
	Notes    *string
}

func (e *Engine) Update(ctx context.Context, id string, p Patch) (model.Appointment, error) {
	appt, err := e.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	updated := appt
	timesChanged := false
	if p.Start != nil && !p.Start.Equal(appt.Start) {
		updated.Start = *p.Start
		timesChanged = true
	}
	if p.End != nil && !p.End.Equal(appt.End) {
		updated.End = *p.End
		timesChanged = true
	}
	if !updated.End.After(updated.Start) {
		return model.Appointment{}, validationf("end must be after start")
	}
	if p.ReasonID != nil {
		if *p.ReasonID == "" {
			return model.Appointment{}, validationf("reason_id is required")
		}
		updated.ReasonID = *p.ReasonID
	}
	if p.ClientID != nil {
		updated.ClientID = *p.ClientID
	}
	if p.Notes != nil {
		updated.Notes = *p.Notes
	}
	if p.Status != nil && *p.Status != appt.Status {
		if !appt.Status.CanTransitionTo(*p.Status) {
			return model.Appointment{}, validationf("cannot transition from %s to %s", appt.Status, *p.Status)
		}
		updated.Status = *p.Status
	}

	if timesChanged && updated.Status != model.StatusCancelled {
		overlapping, err := e.store.FindOverlapping(ctx, updated.ConsultantID, updated.Start, updated.End, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if len(overlapping) > 0 {
			return model.Appointment{}, &ConflictError{ConsultantID: updated.ConsultantID, Start: updated.Start, End: updated.End}
		}
	}

	if err := e.store.Update(ctx, &updated); err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// Cancel forces status cancelled through the normal transition table.
// Cancelling an already-cancelled appointment is a no-op returning the stored
// record; cancelling any other terminal status fails.
func (e *Engine) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := e.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == model.StatusCancelled {
		return appt, nil
	}
	cancelled := model.StatusCancelled
	return e.Update(ctx, id, Patch{Status: &cancelled})
}

func (e *Engine) Get(ctx context.Context, id string) (model.Appointment, error) {
	return e.store.GetByID(ctx, id)
}

// ListRange returns appointments of any status intersecting [from, to) for
// the consultant, used by the calendar views.
func (e *Engine) ListRange(ctx context.Context, consultantID string, from, to time.Time) ([]model.Appointment, error) {
	if consultantID == "" {
		return nil, validationf("consultant_id is required")
	}
	if !to.After(from) {
		return nil, validationf("range end must be after range start")
	}
	return e.store.FindInRange(ctx, consultantID, from, to)
}

// WorkingHours is a consultant's bookable window as offsets from midnight of
// the requested day, in that day's location.
type WorkingHours struct {
	Start time.Duration
	End   time.Duration
}

// AvailableSlots computes the fixed-size slot sequence for one consultant and
// one calendar day. Cancelled appointments never occupy a slot. A degenerate
// window yields an empty list, not an error. The result is recomputed fresh
// on every call.
func (e *Engine) AvailableSlots(ctx context.Context, consultantID string, day time.Time, hours WorkingHours, slotDuration time.Duration) ([]availability.Slot, error) {
	if consultantID == "" {
		return nil, validationf("consultant_id is required")
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	windowStart := midnight.Add(hours.Start)
	windowEnd := midnight.Add(hours.End)
	if slotDuration <= 0 || !windowEnd.After(windowStart) {
		return []availability.Slot{}, nil
	}

	appts, err := e.store.FindInRange(ctx, consultantID, midnight, midnight.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		if a.Status == model.StatusCancelled {
			continue
		}
		busy = append(busy, availability.Interval{Start: a.Start, End: a.End})
	}

	return availability.DaySlots(windowStart, windowEnd, slotDuration, busy), nil
}
