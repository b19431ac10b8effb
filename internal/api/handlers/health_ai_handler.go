package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// HealthAIService defines the model-backed health features
type HealthAIService interface {
	Analyze(ctx context.Context, p *entities.Principal, req services.SymptomCheckRequest) (*services.SymptomCheckResult, error)
	GenerateInsights(ctx context.Context, p *entities.Principal) (*entities.HealthInsight, error)
}

// HealthAIHandler handles symptom checks and health insights
type HealthAIHandler struct {
	service HealthAIService
}

// NewHealthAIHandler creates a new health AI handler
func NewHealthAIHandler(service HealthAIService) *HealthAIHandler {
	return &HealthAIHandler{service: service}
}

// SymptomCheck handles POST /api/symptom-check
func (h *HealthAIHandler) SymptomCheck(w http.ResponseWriter, r *http.Request) {
	var req services.SymptomCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Analyze(r.Context(), principal(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GenerateInsights handles POST /api/health-insights/generate
func (h *HealthAIHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	insight, err := h.service.GenerateInsights(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, insight)
}
