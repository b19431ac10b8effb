package middleware

import (
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/loaders"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
)

// LoadersMiddleware gives every request its own batching loaders
func LoadersMiddleware(repo repositories.EntityRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(repo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
