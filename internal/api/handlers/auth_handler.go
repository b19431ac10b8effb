package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// AuthService defines the interface for account operations
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Logout(ctx context.Context, raw string) error
	Me(ctx context.Context, p *entities.Principal) (*entities.User, error)
	UpdateMe(ctx context.Context, p *entities.Principal, partial map[string]any) (*entities.User, error)
	SetRole(ctx context.Context, p *entities.Principal, userID string, role entities.Role) (*entities.User, error)
	LoginRedirectURL(fromURL string) string
}

// AuthHandler handles /api/auth requests
type AuthHandler struct {
	service AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/auth/status. It never fails with 401.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{
		"authenticated": principal(r) != nil,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	partial := map[string]any{}
	if !decodeJSON(w, r, &partial) {
		return
	}

	user, err := h.service.UpdateMe(r.Context(), principal(r), partial)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// RedirectToLogin handles GET /api/auth/login?from_url=...
func (h *AuthHandler) RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.service.LoginRedirectURL(r.URL.Query().Get("from_url")), http.StatusFound)
}

// SetRole handles POST /api/admin/users/{id}/role
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role entities.Role `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.SetRole(r.Context(), principal(r), r.PathValue("id"), req.Role)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
