package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/engine"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/hours"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/model"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/outbox"
)

// EventSink records domain events after successful mutations. Satisfied by
// *outbox.Repository; nil disables event publication.
type EventSink interface {
	InsertOne(ctx context.Context, evt outbox.Event) error
}

type SchedulingHandler struct {
	engine   *engine.Engine
	hours    hours.Provider
	events   EventSink
	logger   *slog.Logger
	defaults hours.Config
}

func NewSchedulingHandler(eng *engine.Engine, hoursProvider hours.Provider, events EventSink, logger *slog.Logger, defaults hours.Config) *SchedulingHandler {
	return &SchedulingHandler{
		engine:   eng,
		hours:    hoursProvider,
		events:   events,
		logger:   logger,
		defaults: defaults,
	}
}

type createAppointmentRequest struct {
	ConsultantID string `json:"consultant_id"`
	ClientID     string `json:"client_id"`
	ReasonID     string `json:"reason_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Notes        string `json:"notes"`
	Status       string `json:"status"`
}

type updateAppointmentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	ClientID      *string `json:"client_id"`
	ReasonID      *string `json:"reason_id"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	ConsultantID  string `json:"consultant_id"`
	ClientID      string `json:"client_id,omitempty"`
	ReasonID      string `json:"reason_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// Appointments dispatches the collection endpoint: GET lists a range, POST is
// the staff create.
func (h *SchedulingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Book is the client self-service booking endpoint; the status is always
// pending regardless of what the caller sends.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

// Create is the staff endpoint; the initial status may be pending or confirmed.
func (h *SchedulingHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

func (h *SchedulingHandler) create(w http.ResponseWriter, r *http.Request, selfService bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ConsultantID = strings.TrimSpace(req.ConsultantID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ReasonID = strings.TrimSpace(req.ReasonID)
	if req.ConsultantID == "" || req.ReasonID == "" {
		http.Error(w, "consultant_id and reason_id are required", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	var status model.Status
	if !selfService && strings.TrimSpace(req.Status) != "" {
		status, err = model.ParseStatus(strings.TrimSpace(req.Status))
		if err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	appt, err := h.engine.Create(r.Context(), engine.CreateParams{
		ConsultantID: req.ConsultantID,
		ClientID:     req.ClientID,
		ReasonID:     req.ReasonID,
		Start:        startTime,
		End:          endTime,
		Notes:        req.Notes,
		Status:       status,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.publishEvent(r.Context(), outbox.EventAppointmentBooked, appt)
	h.writeAppointment(w, http.StatusCreated, appt)
}

func (h *SchedulingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	var patch engine.Patch
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		patch.Start = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		patch.End = &t
	}
	if req.Status != nil {
		status, err := model.ParseStatus(strings.TrimSpace(*req.Status))
		if err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		patch.Status = &status
	}
	patch.ClientID = req.ClientID
	patch.ReasonID = req.ReasonID
	patch.Notes = req.Notes

	appt, err := h.engine.Update(r.Context(), req.AppointmentID, patch)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.publishEvent(r.Context(), outbox.EventAppointmentUpdated, appt)
	h.writeAppointment(w, http.StatusOK, appt)
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Cancel(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.publishEvent(r.Context(), outbox.EventAppointmentCancelled, appt)
	h.writeAppointment(w, http.StatusOK, appt)
}

// List returns all appointments intersecting [from, to) regardless of status;
// the calendar views render month/week/day grids from this.
func (h *SchedulingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	consultantID := strings.TrimSpace(r.URL.Query().Get("consultant_id"))
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if consultantID == "" || fromStr == "" || toStr == "" {
		http.Error(w, "consultant_id, from, and to are required", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	appts, err := h.engine.ListRange(r.Context(), consultantID, from, to)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// Slots answers the client booking screen: the ordered fixed-size slot list
// for one consultant and one calendar day, each annotated available or not.
func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	consultantID := strings.TrimSpace(r.URL.Query().Get("consultant_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if consultantID == "" || dateStr == "" {
		http.Error(w, "consultant_id and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	cfg := h.defaults
	if h.hours != nil {
		resolved, err := h.hours.ForConsultant(r.Context(), consultantID)
		if err != nil {
			h.logger.Warn("working hours lookup failed; using defaults", "err", err, "consultant_id", consultantID)
		} else {
			cfg = resolved
		}
	}

	slots, err := h.engine.AvailableSlots(r.Context(), consultantID, day, cfg.Workday, cfg.SlotDuration)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Available: s.Available,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SchedulingHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case engine.IsConflict(err):
		http.Error(w, "slot no longer available", http.StatusConflict)
	case engine.IsValidation(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("scheduling operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *SchedulingHandler) publishEvent(ctx context.Context, eventType string, appt model.Appointment) {
	if h.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"consultant_id":  appt.ConsultantID,
		"client_id":      appt.ClientID,
		"reason_id":      appt.ReasonID,
		"start_time":     appt.Start.UTC().Format(time.RFC3339),
		"end_time":       appt.End.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
	})
	if err != nil {
		h.logger.Error("failed to build event payload", "err", err)
		return
	}
	if err := h.events.InsertOne(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		h.logger.Error("failed to enqueue event", "err", err, "event_type", eventType)
	}
}

func (h *SchedulingHandler) writeAppointment(w http.ResponseWriter, status int, appt model.Appointment) {
	writeJSON(w, status, toAppointmentItem(appt))
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID: appt.ID,
		ConsultantID:  appt.ConsultantID,
		ClientID:      appt.ClientID,
		ReasonID:      appt.ReasonID,
		StartTime:     appt.Start.UTC().Format(time.RFC3339),
		EndTime:       appt.End.UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
		Notes:         appt.Notes,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
