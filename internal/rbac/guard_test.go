package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/shared"
)

func newTestSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func sessionContext(sess *shared.Session) context.Context {
	return shared.ContextWithSession(context.Background(), sess)
}

func snapshot(role string, permissions []string, syncedAt time.Time) shared.AccessSnapshot {
	return shared.AccessSnapshot{
		RoleCode:    role,
		Permissions: permissions,
		SyncedAt:    syncedAt.UnixMilli(),
	}
}

func TestRequirePermissionNoSession(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}

	decision := guard.RequirePermission(context.Background(), rbac.PermissionKey(rbac.ModuleSales, rbac.ActionRead))
	if decision.Allowed() {
		t.Fatalf("expected block without session")
	}
	if decision.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", decision.Status)
	}
}

func TestRequirePermissionAnonymousSession(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}
	sess := newTestSession(t)

	decision := guard.RequirePermission(sessionContext(sess), rbac.PermissionKey(rbac.ModuleSales, rbac.ActionRead))
	if decision.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for session without user, got %d", decision.Status)
	}
}

func TestRequirePermissionForbiddenCarriesDiagnostics(t *testing.T) {
	index := rbac.NewIndex(rbac.DefaultMatrix())
	guard := rbac.Guard{Index: index}
	sess := newTestSession(t)
	sess.SetUser("7")
	perms := make([]string, 0)
	for _, key := range index.PermissionsForRole(rbac.RoleFnb) {
		perms = append(perms, string(key))
	}
	sess.SetAccess(snapshot("fnb", perms, time.Now()).Encode())

	required := rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionCreate)
	decision := guard.RequirePermission(sessionContext(sess), required)
	if decision.Allowed() {
		t.Fatalf("expected block")
	}
	if decision.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", decision.Status)
	}
	if decision.Body.RequiredPermission != "inventory:create" {
		t.Fatalf("expected required_permission diagnostic, got %q", decision.Body.RequiredPermission)
	}
	if decision.Body.Role != "fnb" {
		t.Fatalf("expected role diagnostic, got %q", decision.Body.Role)
	}
}

func TestRequirePermissionAllowed(t *testing.T) {
	index := rbac.NewIndex(rbac.DefaultMatrix())
	guard := rbac.Guard{Index: index}
	sess := newTestSession(t)
	sess.SetUser("1")
	perms := make([]string, 0)
	for _, key := range index.PermissionsForRole(rbac.RoleAdmin) {
		perms = append(perms, string(key))
	}
	sess.SetAccess(snapshot("admin", perms, time.Now()).Encode())

	decision := guard.RequirePermission(sessionContext(sess), rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionCreate))
	if !decision.Allowed() {
		t.Fatalf("expected allow, got status %d", decision.Status)
	}
}

func TestRequirePermissionUsesCachedListFirst(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}
	sess := newTestSession(t)
	sess.SetUser("9")
	// The cached list wins over the index; the DB may grant keys the static
	// matrix does not know about yet.
	sess.SetAccess(snapshot("fnb", []string{"inventory:create"}, time.Now()).Encode())

	decision := guard.RequirePermission(sessionContext(sess), rbac.Key("inventory:create"))
	if !decision.Allowed() {
		t.Fatalf("expected cached permission list to grant access")
	}
}

func TestRequirePermissionFallsBackToIndex(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}
	sess := newTestSession(t)
	sess.SetUser("3")
	sess.SetAccess(snapshot("admin", []string{}, time.Now()).Encode())

	decision := guard.RequirePermission(sessionContext(sess), rbac.PermissionKey(rbac.ModuleUsers, rbac.ActionDelete))
	if !decision.Allowed() {
		t.Fatalf("expected index fallback to grant admin, got status %d", decision.Status)
	}

	denied := guard.RequirePermission(sessionContext(sess), rbac.Key("attendance:read"))
	if denied.Allowed() {
		t.Fatalf("unknown key must deny")
	}
}

func TestRequireAnyRole(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}

	decision := guard.RequireAnyRole(context.Background(), rbac.RoleAdmin)
	if decision.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", decision.Status)
	}

	sess := newTestSession(t)
	sess.SetUser("4")
	sess.SetAccess(snapshot("host", []string{}, time.Now()).Encode())

	allowed := guard.RequireAnyRole(sessionContext(sess), rbac.RoleHost, rbac.RoleAdmin)
	if !allowed.Allowed() {
		t.Fatalf("expected host to pass allow-list")
	}

	blocked := guard.RequireAnyRole(sessionContext(sess), rbac.RoleAdmin, rbac.RoleFnbManager)
	if blocked.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", blocked.Status)
	}
	if blocked.Body.Role != "host" {
		t.Fatalf("expected role diagnostic, got %q", blocked.Body.Role)
	}
	if len(blocked.Body.RequiredRoles) != 2 {
		t.Fatalf("expected required_roles diagnostic, got %v", blocked.Body.RequiredRoles)
	}
}

func TestDecisionWrite(t *testing.T) {
	guard := rbac.Guard{Index: rbac.NewIndex(rbac.DefaultMatrix())}

	decision := guard.RequirePermission(context.Background(), rbac.PermissionKey(rbac.ModuleSales, rbac.ActionRead))
	rr := httptest.NewRecorder()
	decision.Write(rr)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON response, got %q", ct)
	}
}
