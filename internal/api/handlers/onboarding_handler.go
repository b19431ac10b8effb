package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// OnboardingService defines partner applications and their review
type OnboardingService interface {
	Apply(ctx context.Context, p *entities.Principal, kind entities.PartnerKind, data map[string]any) (*entities.Record, error)
	Verify(ctx context.Context, p *entities.Principal, kind entities.PartnerKind, id string, approve bool) (*entities.Record, error)
	ListPending(ctx context.Context, p *entities.Principal, kind entities.PartnerKind) ([]*entities.Record, error)
}

// OnboardingHandler handles partner onboarding
type OnboardingHandler struct {
	service OnboardingService
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(service OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

// Apply handles POST /api/onboarding/{kind}
func (h *OnboardingHandler) Apply(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if !decodeJSON(w, r, &data) {
		return
	}

	rec, err := h.service.Apply(r.Context(), principal(r), entities.PartnerKind(r.PathValue("kind")), data)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rec)
}

// ListPending handles GET /api/admin/onboarding/{kind}
func (h *OnboardingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context(), principal(r), entities.PartnerKind(r.PathValue("kind")))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pending)
}

// Verify handles POST /api/admin/onboarding/{kind}/{id}/verify with {"approve": bool}
func (h *OnboardingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve *bool `json:"approve"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Approve == nil {
		respondWithError(w, http.StatusBadRequest, "approve is required")
		return
	}

	rec, err := h.service.Verify(r.Context(), principal(r), entities.PartnerKind(r.PathValue("kind")), r.PathValue("id"), *req.Approve)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}
