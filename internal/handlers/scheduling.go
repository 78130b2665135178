package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
	"github.com/arafat-hossain/barberbook/libs/auth"
)

// SchedulingHandler exposes the booking API. Identity arrives as the
// X-User-Id and X-Role headers set by the gateway after token verification.
type SchedulingHandler struct {
	svc    *scheduling.Service
	logger *slog.Logger
}

func NewSchedulingHandler(svc *scheduling.Service, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{svc: svc, logger: logger}
}

func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/providers/{id}/slots", h.Slots)
	mux.HandleFunc("PUT /api/v1/providers/{id}/availability", h.ReplaceAvailability)
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", h.Confirm)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/v1/appointments/{id}/complete", h.Complete)
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", h.Reschedule)
}

type identity struct {
	UserID string
	Role   string
}

func callerIdentity(r *http.Request) (identity, bool) {
	id := identity{
		UserID: strings.TrimSpace(r.Header.Get("X-User-Id")),
		Role:   strings.TrimSpace(r.Header.Get("X-Role")),
	}
	return id, id.UserID != ""
}

type createAppointmentRequest struct {
	ProviderID      string   `json:"provider_id"`
	ServiceRefs     []string `json:"service_refs"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
}

type rescheduleRequest struct {
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type availabilityWindowItem struct {
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type replaceAvailabilityRequest struct {
	Windows []availabilityWindowItem `json:"windows"`
}

type appointmentItem struct {
	AppointmentID   string   `json:"appointment_id"`
	ProviderID      string   `json:"provider_id"`
	CustomerID      string   `json:"customer_id"`
	ServiceRefs     []string `json:"service_refs,omitempty"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	TotalPrice      string   `json:"total_price,omitempty"`
	CancelReason    string   `json:"cancel_reason,omitempty"`
	CancelledAt     string   `json:"cancelled_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	Available bool   `json:"available"`
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID:   appt.ID,
		ProviderID:      appt.ProviderID,
		CustomerID:      appt.CustomerID,
		ServiceRefs:     appt.ServiceRefs,
		StartTime:       appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:         appt.EndTime().UTC().Format(time.RFC3339),
		DurationMinutes: appt.DurationMinutes,
		Status:          string(appt.Status),
		TotalPrice:      appt.TotalPrice,
		CancelReason:    appt.CancelReason,
		CreatedAt:       appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	duration := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
	}

	slots, err := h.svc.ListAvailableSlots(r.Context(), providerID, date, duration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.StartTime.UTC().Format(time.RFC3339),
			Available: s.Available,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateStr, "slots": items})
}

func (h *SchedulingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), scheduling.CreateRequest{
		ProviderID:      req.ProviderID,
		CustomerID:      caller.UserID,
		ServiceRefs:     req.ServiceRefs,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *SchedulingHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	appt, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !mayAccess(caller, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *SchedulingHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	q := scheduling.ListQuery{Limit: limit}
	switch caller.Role {
	case auth.RoleProvider:
		q.ProviderID = caller.UserID
	default:
		q.CustomerID = caller.UserID
	}

	appts, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// Confirm and Complete are provider actions on the provider's own book.
func (h *SchedulingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.providerTransition(w, r, h.svc.Confirm)
}

func (h *SchedulingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.providerTransition(w, r, h.svc.Complete)
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !mayAccess(caller, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(cancelled))
}

func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !mayAccess(caller, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	moved, err := h.svc.Reschedule(r.Context(), id, startTime, req.DurationMinutes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(moved))
}

func (h *SchedulingHandler) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	providerID := r.PathValue("id")
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleProvider && caller.UserID == providerID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req replaceAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	windows := make([]model.AvailabilityWindow, 0, len(req.Windows))
	for _, item := range req.Windows {
		windows = append(windows, model.AvailabilityWindow{
			ProviderID:  providerID,
			Weekday:     time.Weekday(item.DayOfWeek),
			StartMinute: item.StartMinute,
			EndMinute:   item.EndMinute,
		})
	}

	if err := h.svc.ReplaceAvailability(r.Context(), providerID, windows); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "windows": len(windows)})
}

func (h *SchedulingHandler) providerTransition(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, id string) (model.Appointment, error)) {
	caller, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if caller.Role != auth.RoleProvider && caller.Role != auth.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id := r.PathValue("id")

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !mayAccess(caller, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	updated, err := do(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(updated))
}

func mayAccess(caller identity, appt model.Appointment) bool {
	switch caller.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleProvider:
		return caller.UserID == appt.ProviderID
	default:
		return caller.UserID == appt.CustomerID
	}
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, scheduling.ErrSlotConflict):
		http.Error(w, "time slot is no longer available", http.StatusConflict)
	case errors.Is(err, scheduling.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, scheduling.ErrProviderUnavailable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, scheduling.ErrStoreUnavailable):
		h.logger.ErrorContext(r.Context(), "storage unavailable", "err", err)
		http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
