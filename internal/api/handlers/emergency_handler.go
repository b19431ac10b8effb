package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// EmergencyService defines the emergency request operations
type EmergencyService interface {
	Raise(ctx context.Context, p *entities.Principal, req services.RaiseEmergencyRequest) (*entities.EmergencyRequest, error)
	UpdateStatus(ctx context.Context, p *entities.Principal, id string, next entities.EmergencyStatus) (*entities.EmergencyRequest, error)
	ListOpen(ctx context.Context, p *entities.Principal) ([]*entities.EmergencyRequest, error)
}

// EmergencyHandler handles /api/emergency-requests
type EmergencyHandler struct {
	service EmergencyService
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(service EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{service: service}
}

// Raise handles POST /api/emergency-requests
func (h *EmergencyHandler) Raise(w http.ResponseWriter, r *http.Request) {
	var req services.RaiseEmergencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emergency, err := h.service.Raise(r.Context(), principal(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, emergency)
}

// ListOpen handles GET /api/emergency-requests/open
func (h *EmergencyHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	open, err := h.service.ListOpen(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, open)
}

// UpdateStatus handles POST /api/emergency-requests/{id}/status
func (h *EmergencyHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status entities.EmergencyStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	emergency, err := h.service.UpdateStatus(r.Context(), principal(r), r.PathValue("id"), req.Status)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, emergency)
}
