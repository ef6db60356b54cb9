package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

// PermissionsHandler serves the static permission catalog for the admin UI.
type PermissionsHandler struct {
	logger *slog.Logger
	index  *Index
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, index *Index, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, index: index, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(PermissionKey(ModuleRoles, ActionRead)))
		r.Get("/", h.listPermissions)
		r.Get("/roles/{code}", h.rolePermissions)
	})
}

type permissionEntry struct {
	Key    string   `json:"key"`
	Module string   `json:"module"`
	Action string   `json:"action"`
	Roles  []string `json:"roles"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager, RoleHost}
	entries := make([]permissionEntry, 0, len(h.index.Keys()))
	for _, key := range h.index.Keys() {
		module, action, ok := key.Split()
		if !ok {
			continue
		}
		entry := permissionEntry{
			Key:    string(key),
			Module: string(module),
			Action: string(action),
			Roles:  []string{},
		}
		for _, role := range roles {
			if h.index.RoleHas(role, key) {
				entry.Roles = append(entry.Roles, string(role))
			}
		}
		entries = append(entries, entry)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": entries})
}

func (h *PermissionsHandler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	keys := h.index.PermissionsForRole(RoleCode(code))
	permissions := make([]string, len(keys))
	for i, key := range keys {
		permissions[i] = string(key)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        code,
		"permissions": permissions,
	})
}
