package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
)

// EntityService defines the generic entity operations exposed over HTTP
type EntityService interface {
	Filter(ctx context.Context, p *entities.Principal, entity string, query repositories.EntityQuery) ([]*entities.Record, error)
	Get(ctx context.Context, p *entities.Principal, entity, id string) (*entities.Record, error)
	Create(ctx context.Context, p *entities.Principal, entity string, data map[string]any) (*entities.Record, error)
	Update(ctx context.Context, p *entities.Principal, entity, id string, partial map[string]any) (*entities.Record, error)
	Delete(ctx context.Context, p *entities.Principal, entity, id string) error
	Search(ctx context.Context, p *entities.Principal, entity, q string, limit int) ([]*entities.Record, error)
}

// EntityHandler serves /api/entities/{entity}
type EntityHandler struct {
	service EntityService
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(service EntityService) *EntityHandler {
	return &EntityHandler{
		service: service,
	}
}

// parseEntityQuery reads q (a JSON object of equality filters), sort, limit and skip
func parseEntityQuery(r *http.Request) (repositories.EntityQuery, string) {
	query := repositories.EntityQuery{}
	params := r.URL.Query()

	if raw := params.Get("q"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &query.Match); err != nil {
			return query, "q must be a JSON object"
		}
	}
	query.Sort = params.Get("sort")

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return query, "invalid limit parameter"
		}
		query.Limit = limit
	}
	if raw := params.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return query, "invalid skip parameter"
		}
		query.Offset = skip
	}
	return query, ""
}

// List handles GET /api/entities/{entity}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	query, problem := parseEntityQuery(r)
	if problem != "" {
		respondWithError(w, http.StatusBadRequest, problem)
		return
	}

	records, err := h.service.Filter(r.Context(), principal(r), r.PathValue("entity"), query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

// Get handles GET /api/entities/{entity}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), principal(r), r.PathValue("entity"), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// Create handles POST /api/entities/{entity}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if !decodeJSON(w, r, &data) {
		return
	}

	rec, err := h.service.Create(r.Context(), principal(r), r.PathValue("entity"), data)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rec)
}

// Update handles PATCH and PUT /api/entities/{entity}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	partial := map[string]any{}
	if !decodeJSON(w, r, &partial) {
		return
	}

	rec, err := h.service.Update(r.Context(), principal(r), r.PathValue("entity"), r.PathValue("id"), partial)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/entities/{entity}/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), principal(r), r.PathValue("entity"), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?entity=X&q=...&limit=
func (h *EntityHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	entity := params.Get("entity")
	if entity == "" {
		respondWithError(w, http.StatusBadRequest, "entity query parameter is required")
		return
	}

	limit := 0
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	records, err := h.service.Search(r.Context(), principal(r), entity, params.Get("q"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}
