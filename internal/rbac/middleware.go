package rbac

import (
	"log/slog"
	"net/http"

	"github.com/nusapos/nusapos/internal/observability"
)

// Middleware adapts Guard decisions to the chi middleware chain.
type Middleware struct {
	Guard   Guard
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequirePermission blocks requests whose session lacks the permission key.
func (m Middleware) RequirePermission(key Key) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := m.Guard.RequirePermission(r.Context(), key)
			if !decision.Allowed() {
				m.deny(w, r, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole blocks requests whose session role is not in the list.
func (m Middleware) RequireAnyRole(roles ...RoleCode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := m.Guard.RequireAnyRole(r.Context(), roles...)
			if !decision.Allowed() {
				m.deny(w, r, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, decision Decision) {
	if m.Logger != nil {
		m.Logger.Warn("request blocked",
			slog.String("path", r.URL.Path),
			slog.Int("status", decision.Status),
			slog.String("required_permission", decision.Body.RequiredPermission),
			slog.String("role", decision.Body.Role),
		)
	}
	if m.Metrics != nil {
		m.Metrics.AuthzDenied(r, decision.Status)
	}
	decision.Write(w)
}
