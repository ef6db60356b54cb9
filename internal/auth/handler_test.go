package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/shared"
)

type stubRepo struct {
	user     *User
	sessions map[string]int64
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if r.user == nil || r.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return r.user, nil
}

func (r *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if r.sessions == nil {
		r.sessions = map[string]int64{}
	}
	r.sessions[id] = userID
	return nil
}

func (r *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func (r *stubRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubAccess struct {
	access rbac.Access
	err    error
}

func (s *stubAccess) Resolve(ctx context.Context, userID int64) (rbac.Access, error) {
	return s.access, s.err
}

func newTestHandler(t *testing.T, repo *stubRepo, access rbac.AccessSource) *Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "nusapos_session", "test-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, NewService(repo), access, sessions, csrf)
}

func activeUser(t *testing.T, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &User{
		ID:           42,
		Email:        "kasir@nusapos.test",
		Name:         "Kasir Satu",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func requestWithSession(method, target, body string, sess *shared.Session) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func TestLoginSuccessPopulatesAccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "rahasia-123")}
	access := &stubAccess{access: rbac.Access{
		RoleCode:    "fnb",
		Permissions: []string{"sales:create", "sales:read"},
	}}
	h := newTestHandler(t, repo, access)

	sess := &shared.Session{}
	r := requestWithSession(http.MethodPost, "/auth/login", `{"email":"kasir@nusapos.test","password":"rahasia-123"}`, sess)
	w := httptest.NewRecorder()
	h.handleLogin(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Authenticated bool     `json:"authenticated"`
		UserID        int64    `json:"user_id"`
		RoleCode      string   `json:"role_code"`
		Permissions   []string `json:"permissions"`
		CSRFToken     string   `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Authenticated)
	assert.Equal(t, int64(42), resp.UserID)
	assert.Equal(t, "fnb", resp.RoleCode)
	assert.Contains(t, resp.Permissions, "sales:create")
	assert.NotEmpty(t, resp.CSRFToken)

	assert.Equal(t, "42", sess.User())
	snap, ok := shared.DecodeAccess(sess.Access())
	require.True(t, ok)
	assert.Equal(t, "fnb", snap.RoleCode)

	assert.Len(t, repo.sessions, 1)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "rahasia-123")}
	h := newTestHandler(t, repo, &stubAccess{})

	sess := &shared.Session{}
	r := requestWithSession(http.MethodPost, "/auth/login", `{"email":"kasir@nusapos.test","password":"salah-semua"}`, sess)
	w := httptest.NewRecorder()
	h.handleLogin(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sess.User())
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "rahasia-123")
	user.IsActive = false
	h := newTestHandler(t, &stubRepo{user: user}, &stubAccess{})

	sess := &shared.Session{}
	r := requestWithSession(http.MethodPost, "/auth/login", `{"email":"kasir@nusapos.test","password":"rahasia-123"}`, sess)
	w := httptest.NewRecorder()
	h.handleLogin(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginResolverFailureFailsLogin(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "rahasia-123")}
	h := newTestHandler(t, repo, &stubAccess{err: context.DeadlineExceeded})

	sess := &shared.Session{}
	r := requestWithSession(http.MethodPost, "/auth/login", `{"email":"kasir@nusapos.test","password":"rahasia-123"}`, sess)
	w := httptest.NewRecorder()
	h.handleLogin(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, sess.User())
}

func TestLoginValidation(t *testing.T) {
	h := newTestHandler(t, &stubRepo{}, &stubAccess{})

	sess := &shared.Session{}
	r := requestWithSession(http.MethodPost, "/auth/login", `{"email":"bukan-email","password":"x"}`, sess)
	w := httptest.NewRecorder()
	h.handleLogin(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionAnonymous(t *testing.T) {
	h := newTestHandler(t, &stubRepo{}, &stubAccess{})

	sess := &shared.Session{}
	r := requestWithSession(http.MethodGet, "/auth/session", "", sess)
	w := httptest.NewRecorder()
	h.handleSession(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Authenticated bool   `json:"authenticated"`
		CSRFToken     string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Authenticated)
	assert.NotEmpty(t, resp.CSRFToken)
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{sessions: map[string]int64{"abc": 42}}
	h := newTestHandler(t, repo, &stubAccess{})

	sess := &shared.Session{ID: "abc"}
	sess.SetUser("42")
	r := requestWithSession(http.MethodPost, "/auth/logout", "", sess)
	w := httptest.NewRecorder()
	h.handleLogout(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.sessions)
}
