package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

type ctxKey string

const (
	principalKey ctxKey = "principal"
	tokenKey     ctxKey = "token"
)

// Authenticator resolves a bearer token into a principal
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entities.Principal, error)
}

// PrincipalFromContext returns the authenticated caller, or nil
func PrincipalFromContext(ctx context.Context) *entities.Principal {
	p, _ := ctx.Value(principalKey).(*entities.Principal)
	return p
}

// TokenFromContext returns the bearer token the caller authenticated with
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// WithPrincipal attaches p to ctx
func WithPrincipal(ctx context.Context, p *entities.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	// EventSource cannot set headers, so streams may pass the token as a query parameter
	if strings.HasPrefix(r.URL.Path, "/api/stream/") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Authenticate attaches the principal for a valid bearer token. Requests
// without a token, or with an invalid one, continue anonymously.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if apperrors.TypeOf(err) != apperrors.ErrorTypeUnauthorized {
					observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("authentication failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequireAuth rejects anonymous requests with 401
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers without one of roles. Admins always pass.
func RequireRole(roles ...entities.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PrincipalFromContext(r.Context()).HasRole(roles...) {
				writeError(w, http.StatusForbidden, "you do not have access to this resource")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
