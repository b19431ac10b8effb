package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// AppointmentService defines the interface for appointment operations
type AppointmentService interface {
	Book(ctx context.Context, p *entities.Principal, req services.BookAppointmentRequest) (*entities.Appointment, error)
	Cancel(ctx context.Context, p *entities.Principal, id, reason string) (*entities.Appointment, error)
	Confirm(ctx context.Context, p *entities.Principal, id string) (*entities.Appointment, error)
	Complete(ctx context.Context, p *entities.Principal, id string) (*entities.Appointment, error)
	ListMine(ctx context.Context, p *entities.Principal) ([]*entities.Appointment, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service AppointmentService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req services.BookAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appointment, err := h.service.Book(r.Context(), principal(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, appointment)
}

// ListAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.service.ListMine(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointments)
}

// CancelAppointment handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	appointment, err := h.service.Cancel(r.Context(), principal(r), r.PathValue("id"), req.Reason)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// ConfirmAppointment handles POST /api/appointments/{id}/confirm
func (h *AppointmentHandler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.service.Confirm(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// CompleteAppointment handles POST /api/appointments/{id}/complete
func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.service.Complete(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}
