package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// multipartOverhead is allowed on top of the file itself for headers and boundaries
const multipartOverhead = 64 << 10

// IntegrationService defines the interface for the core integrations
type IntegrationService interface {
	InvokeLLM(ctx context.Context, req entities.LLMRequest) (map[string]any, error)
	UploadFile(ctx context.Context, p *entities.Principal, filename string, content []byte) (*services.UploadResult, error)
	GetFile(ctx context.Context, id string) (*entities.StoredFile, error)
	MaxUploadBytes() int64
}

// IntegrationHandler handles /api/integrations/core and /files
type IntegrationHandler struct {
	service IntegrationService
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(service IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{
		service: service,
	}
}

// InvokeLLM handles POST /api/integrations/core/invoke-llm
func (h *IntegrationHandler) InvokeLLM(w http.ResponseWriter, r *http.Request) {
	var req entities.LLMRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.InvokeLLM(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// UploadFile handles POST /api/integrations/core/upload-file with a multipart "file" field
func (h *IntegrationHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	limit := h.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds the %d byte limit", limit))
			return
		}
		respondWithError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.service.UploadFile(r.Context(), principal(r), header.Filename, content)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// ServeFile handles GET /files/{id}
func (h *IntegrationHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", stored.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(stored.Content)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(stored.Content)
}
