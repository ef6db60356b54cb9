package shared

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestSessionPersistsAccessSnapshot(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("42")
	sess.SetAccess(json.RawMessage(`{"role_code":"admin","permissions":["users:read"],"access_synced_at":1700000000000}`))

	rec := httptest.NewRecorder()
	if err := manager.Commit(ctx, rec, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: sess.ID})
	reloaded, err := manager.Load(ctx, next)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.User() != "42" {
		t.Fatalf("expected user to survive round trip, got %q", reloaded.User())
	}
	snap, ok := DecodeAccess(reloaded.Access())
	if !ok {
		t.Fatalf("expected access snapshot to survive round trip")
	}
	if snap.RoleCode != "admin" {
		t.Fatalf("unexpected role %q", snap.RoleCode)
	}
}

func TestDestroyedSessionRemoved(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("7")
	if err := manager.Commit(ctx, httptest.NewRecorder(), req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}

	manager.Destroy(sess)
	rec := httptest.NewRecorder()
	if err := manager.Commit(ctx, rec, req, sess); err != nil {
		t.Fatalf("commit destroy: %v", err)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: sess.ID})
	reloaded, err := manager.Load(ctx, next)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.User() != "" {
		t.Fatalf("expected empty session after destroy")
	}

	var cleared bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == manager.CookieName() && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie cleared")
	}
}

func TestClearAccess(t *testing.T) {
	manager := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetAccess(json.RawMessage(`{"role_code":"fnb","permissions":[],"access_synced_at":1}`))
	sess.ClearAccess()
	if sess.Access() != nil {
		t.Fatalf("expected access cleared")
	}
}
