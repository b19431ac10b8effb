package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// NotificationService defines the notification inbox operations
type NotificationService interface {
	MarkRead(ctx context.Context, p *entities.Principal, id string) (*entities.Record, error)
	MarkAllRead(ctx context.Context, p *entities.Principal) (int, error)
}

// NotificationHandler handles /api/notifications
type NotificationHandler struct {
	service NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.MarkRead(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.MarkAllRead(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
