package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// maxJSONBody bounds request bodies decoded by decodeJSON
const maxJSONBody = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps err to its HTTP status. Internal errors are logged
// and answered with a generic message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	respondWithError(w, status, apperrors.PublicMessage(err))
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respondWithError(w, http.StatusBadRequest, "invalid request payload")
	return false
}

// principal is a shorthand used by every authenticated handler
func principal(r *http.Request) *entities.Principal {
	return middleware.PrincipalFromContext(r.Context())
}
