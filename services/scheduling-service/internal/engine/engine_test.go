package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/availability"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/model"
)

// fakeStore is an in-memory Store for engine tests. createErr lets tests
// simulate the storage-level conflict that can fire after a clean pre-check.
type fakeStore struct {
	appts     map[string]model.Appointment
	seq       int
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{appts: map[string]model.Appointment{}}
}

func (s *fakeStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *fakeStore) FindOverlapping(_ context.Context, consultantID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ConsultantID != consultantID || a.Status == model.StatusCancelled || a.ID == excludeID {
			continue
		}
		if availability.Overlaps(start, end, a.Start, a.End) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *fakeStore) FindInRange(_ context.Context, consultantID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ConsultantID != consultantID {
			continue
		}
		if availability.Overlaps(from, to, a.Start, a.End) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, appt *model.Appointment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	appt.ID = fmt.Sprintf("appt-%d", s.seq)
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	s.appts[appt.ID] = *appt
	return nil
}

func (s *fakeStore) Update(_ context.Context, appt *model.Appointment) error {
	if _, ok := s.appts[appt.ID]; !ok {
		return ErrNotFound
	}
	appt.UpdatedAt = time.Now().UTC()
	s.appts[appt.ID] = *appt
	return nil
}

func sortByStart(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool { return appts[i].Start.Before(appts[j].Start) })
}

func testEngine() (*Engine, *fakeStore) {
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, logger), store
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 9, hour, min, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, e *Engine, p CreateParams) model.Appointment {
	t.Helper()
	appt, err := e.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return appt
}

func TestCreate_Validation(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	_, err := e.Create(ctx, CreateParams{ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for missing consultant, got %v", err)
	}

	_, err = e.Create(ctx, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(11, 0), End: at(10, 0)})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for reversed interval, got %v", err)
	}

	_, err = e.Create(ctx, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0), Status: model.StatusCompleted})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for completed initial status, got %v", err)
	}
}

func TestCreate_DefaultsToPending(t *testing.T) {
	e, _ := testEngine()
	appt := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	if appt.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", appt.Status)
	}
	if appt.ID == "" {
		t.Fatal("expected assigned id")
	}
}

func TestCreate_Conflict(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})

	_, err := e.Create(ctx, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 30), End: at(11, 30)})
	if !IsConflict(err) {
		t.Fatalf("expected conflict for same consultant, got %v", err)
	}

	// Different consultant, same interval: fine.
	mustCreate(t, e, CreateParams{ConsultantID: "c2", ReasonID: "r1", Start: at(10, 30), End: at(11, 30)})

	// Back-to-back on the same consultant: half-open intervals do not conflict.
	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(11, 0), End: at(12, 0)})
}

func TestCreate_WriteTimeConflict(t *testing.T) {
	e, store := testEngine()
	store.createErr = &ConflictError{ConsultantID: "c1", Start: at(10, 0), End: at(11, 0)}

	_, err := e.Create(context.Background(), CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	if !IsConflict(err) {
		t.Fatalf("expected write-time conflict to surface as conflict, got %v", err)
	}
}

func TestUpdate_Reschedule(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(14, 0), End: at(15, 0)})

	// Moving A onto the 14:00 appointment conflicts.
	start, end := at(14, 30), at(15, 30)
	_, err := e.Update(ctx, a.ID, Patch{Start: &start, End: &end})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Shortening A's own interval never conflicts with itself.
	shortEnd := at(10, 30)
	updated, err := e.Update(ctx, a.ID, Patch{End: &shortEnd})
	if err != nil {
		t.Fatalf("shorten failed: %v", err)
	}
	if !updated.End.Equal(shortEnd) {
		t.Fatalf("expected end %s, got %s", shortEnd, updated.End)
	}

	// Moving to a free interval works.
	freeStart, freeEnd := at(12, 0), at(13, 0)
	if _, err := e.Update(ctx, a.ID, Patch{Start: &freeStart, End: &freeEnd}); err != nil {
		t.Fatalf("reschedule to free interval failed: %v", err)
	}
}

func TestUpdate_StatusTransitions(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})

	// pending -> completed must pass through confirmed first.
	completed := model.StatusCompleted
	if _, err := e.Update(ctx, a.ID, Patch{Status: &completed}); !IsValidation(err) {
		t.Fatalf("expected validation error for pending->completed, got %v", err)
	}

	confirmed := model.StatusConfirmed
	if _, err := e.Update(ctx, a.ID, Patch{Status: &confirmed}); err != nil {
		t.Fatalf("pending->confirmed failed: %v", err)
	}
	updated, err := e.Update(ctx, a.ID, Patch{Status: &completed})
	if err != nil {
		t.Fatalf("confirmed->completed failed: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}

	// Terminal: no way back.
	pending := model.StatusPending
	if _, err := e.Update(ctx, a.ID, Patch{Status: &pending}); !IsValidation(err) {
		t.Fatalf("expected validation error for completed->pending, got %v", err)
	}
}

func TestUpdate_FailedTransitionLeavesRecordUntouched(t *testing.T) {
	e, store := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})

	noShow := model.StatusNoShow
	if _, err := e.Update(ctx, a.ID, Patch{Status: &noShow}); !IsValidation(err) {
		t.Fatalf("expected validation error for pending->no_show, got %v", err)
	}
	stored := store.appts[a.ID]
	if stored.Status != model.StatusPending {
		t.Fatalf("failed update must not mutate the record, status is %s", stored.Status)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	e, _ := testEngine()
	if _, err := e.Update(context.Background(), "missing", Patch{}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})

	cancelled, err := e.Cancel(ctx, a.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Cancelling again is a no-op.
	if _, err := e.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("repeat cancel should be a no-op: %v", err)
	}

	// A completed appointment cannot be cancelled.
	b := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(12, 0), End: at(13, 0), Status: model.StatusConfirmed})
	completed := model.StatusCompleted
	if _, err := e.Update(ctx, b.ID, Patch{Status: &completed}); err != nil {
		t.Fatalf("confirmed->completed failed: %v", err)
	}
	if _, err := e.Cancel(ctx, b.ID); !IsValidation(err) {
		t.Fatalf("expected validation error cancelling completed, got %v", err)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	if _, err := e.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	stored, err := e.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled on record, got %s", stored.Status)
	}

	// The interval is free again for the same consultant.
	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
}

func TestListRange(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(10, 0), End: at(11, 0)})
	if _, err := e.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(9, 0), End: at(10, 0)})

	appts, err := e.ListRange(ctx, "c1", at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("ListRange failed: %v", err)
	}
	// Cancelled appointments are still listed for calendar rendering.
	if len(appts) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(appts))
	}
	if !appts[0].Start.Equal(at(9, 0)) {
		t.Fatalf("expected ascending order, first start %s", appts[0].Start)
	}

	if _, err := e.ListRange(ctx, "", at(0, 0), at(23, 59)); !IsValidation(err) {
		t.Fatalf("expected validation error for missing consultant, got %v", err)
	}
	if _, err := e.ListRange(ctx, "c1", at(12, 0), at(12, 0)); !IsValidation(err) {
		t.Fatalf("expected validation error for empty range, got %v", err)
	}
}

func workday(startHour, endHour int) WorkingHours {
	return WorkingHours{
		Start: time.Duration(startHour) * time.Hour,
		End:   time.Duration(endHour) * time.Hour,
	}
}

func TestAvailableSlots_Basic(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()
	day := at(0, 0)

	slots, err := e.AvailableSlots(ctx, "c1", day, workday(8, 10), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if !s.Available {
			t.Fatalf("slot %d should be available", i)
		}
	}
}

func TestAvailableSlots_ConfirmedBlocksPartially(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()
	day := at(0, 0)

	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(9, 0), End: at(9, 30), Status: model.StatusConfirmed})

	slots, err := e.AvailableSlots(ctx, "c1", day, workday(8, 10), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Available {
		t.Fatal("08:00 should be available")
	}
	if slots[1].Available {
		t.Fatal("09:00 should be occupied by the 09:00-09:30 appointment")
	}
}

func TestAvailableSlots_CancelledNeverBlocks(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()
	day := at(0, 0)

	a := mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(9, 0), End: at(10, 0)})
	if _, err := e.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	slots, err := e.AvailableSlots(ctx, "c1", day, workday(8, 10), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("cancelled appointment must not occupy slot %s", s.Start)
		}
	}
}

func TestAvailableSlots_IdempotentRequery(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()
	day := at(0, 0)

	mustCreate(t, e, CreateParams{ConsultantID: "c1", ReasonID: "r1", Start: at(9, 0), End: at(10, 0)})

	first, err := e.AvailableSlots(ctx, "c1", day, workday(8, 12), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	second, err := e.AvailableSlots(ctx, "c1", day, workday(8, 12), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("re-query changed slot count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || first[i].Available != second[i].Available {
			t.Fatalf("re-query changed slot %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestAvailableSlots_DegenerateWindow(t *testing.T) {
	e, _ := testEngine()
	ctx := context.Background()
	day := at(0, 0)

	slots, err := e.AvailableSlots(ctx, "c1", day, workday(10, 8), time.Hour)
	if err != nil {
		t.Fatalf("degenerate window should not error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}
