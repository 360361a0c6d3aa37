package auth

import (
	"net/http"
	"strings"

	"github.com/eventharmony/eventharmony/internal/platform/httpx"
	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Middleware resolves bearer credentials into principals.
type Middleware struct {
	service *Service
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Resolve attaches a principal to every request. Requests without an
// Authorization header proceed as the anonymous principal; requests with an
// invalid credential are rejected outright rather than silently downgraded.
func (m *Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			ctx := shared.ContextWithPrincipal(r.Context(), policy.Anonymous())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		credential, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || credential == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}

		principal, err := m.service.Resolve(r.Context(), credential)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests whose principal is anonymous. It assumes
// Resolve already ran.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok || principal.ID == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
