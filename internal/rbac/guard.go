package rbac

import (
	"context"
	"net/http"

	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/shared"
)

// DenialBody is the JSON payload written for a blocked request.
type DenialBody struct {
	Message            string   `json:"message"`
	RequiredPermission string   `json:"required_permission,omitempty"`
	RequiredRoles      []string `json:"required_roles,omitempty"`
	Role               string   `json:"role,omitempty"`
}

// Decision is the discriminated result of a guard check. Callers must test
// Allowed before proceeding; guards never short-circuit by panicking or
// writing responses themselves.
type Decision struct {
	Status int
	Body   DenialBody
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Status == 0
}

// Write renders the denial to the response writer. No-op when allowed.
func (d Decision) Write(w http.ResponseWriter) {
	if d.Allowed() {
		return
	}
	httpx.JSON(w, d.Status, d.Body)
}

var allow = Decision{}

// Guard makes authorization decisions against the session access snapshot,
// falling back to the static index when the snapshot carries a role but no
// cached permission list.
type Guard struct {
	Index *Index
}

// RequirePermission checks that the current session holds the permission
// key. No session yields 401; an authenticated session lacking the grant
// yields 403 carrying the required key and the caller's role.
func (g Guard) RequirePermission(ctx context.Context, key Key) Decision {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return unauthenticated()
	}

	snapshot, ok := shared.DecodeAccess(sess.Access())
	if ok && len(snapshot.Permissions) > 0 {
		for _, granted := range snapshot.Permissions {
			if granted == string(key) {
				return allow
			}
		}
		return forbiddenPermission(key, snapshot.RoleCode)
	}

	// No cached permission list; derive from the role via the index.
	if ok && g.Index != nil && g.Index.RoleHas(RoleCode(snapshot.RoleCode), key) {
		return allow
	}
	role := ""
	if ok {
		role = snapshot.RoleCode
	}
	return forbiddenPermission(key, role)
}

// RequireAnyRole checks that the current session's role is in the
// allow-list.
func (g Guard) RequireAnyRole(ctx context.Context, roles ...RoleCode) Decision {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return unauthenticated()
	}

	snapshot, ok := shared.DecodeAccess(sess.Access())
	role := ""
	if ok {
		role = snapshot.RoleCode
	}
	for _, allowed := range roles {
		if role != "" && role == string(allowed) {
			return allow
		}
	}

	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = string(r)
	}
	return Decision{
		Status: http.StatusForbidden,
		Body: DenialBody{
			Message:       "insufficient role",
			RequiredRoles: required,
			Role:          role,
		},
	}
}

func unauthenticated() Decision {
	return Decision{
		Status: http.StatusUnauthorized,
		Body:   DenialBody{Message: "authentication required"},
	}
}

func forbiddenPermission(key Key, role string) Decision {
	return Decision{
		Status: http.StatusForbidden,
		Body: DenialBody{
			Message:            "insufficient permission",
			RequiredPermission: string(key),
			Role:               role,
		},
	}
}
