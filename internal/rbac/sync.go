package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nusapos/nusapos/internal/shared"
)

// DefaultRefreshInterval bounds how stale a session access snapshot may get
// before the next request forces a database resync.
const DefaultRefreshInterval = 5 * time.Minute

// Syncer refreshes stale session access snapshots inline during request
// handling. Concurrent refreshes for the same user race benignly: the
// resolver read is idempotent and every racer converges on the same value.
type Syncer struct {
	Source   AccessSource
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Middleware resynchronizes the session snapshot when it is missing,
// malformed, or older than the refresh interval. A failed resync is logged
// and the request proceeds on the cached state; the next request retries.
func (s *Syncer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Sync(r)
		next.ServeHTTP(w, r)
	})
}

// Sync performs the staleness check and refresh for a single request.
func (s *Syncer) Sync(r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return
	}

	now := s.now()
	snapshot, ok := shared.DecodeAccess(sess.Access())
	if ok && !snapshot.StaleAt(now, s.interval()) {
		return
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("access sync: bad session user id", slog.String("value", sess.User()))
		}
		sess.ClearAccess()
		return
	}

	access, err := s.Source.Resolve(r.Context(), userID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("access sync failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return
	}
	sess.SetAccess(BuildSnapshot(access, now).Encode())
}

func (s *Syncer) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultRefreshInterval
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
