package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/shared"
)

// Access is the authoritative role/permission tuple for a user as stored in
// the database. RoleCode is empty when the user does not exist or has no
// role assigned; that case is not an error.
type Access struct {
	RoleCode    string
	Permissions []string
}

// AccessSource yields the authoritative access state for a user.
type AccessSource interface {
	Resolve(ctx context.Context, userID int64) (Access, error)
}

// Resolver reads a user's role and that role's grants from PostgreSQL.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver constructs a Resolver backed by the provided pool.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve returns the user's role code and granted permission keys. A
// missing user or unassigned role yields an empty Access with a nil error;
// storage failures propagate so callers can fail the request instead of
// silently granting or denying.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (Access, error) {
	const query = `
		SELECT ro.code, p.permission_key
		FROM users u
		JOIN roles ro ON ro.id = u.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE u.id = $1
		ORDER BY p.permission_key`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return Access{}, fmt.Errorf("rbac: resolve access: %w", err)
	}
	defer rows.Close()

	access := Access{Permissions: []string{}}
	for rows.Next() {
		var code string
		var key *string
		if err := rows.Scan(&code, &key); err != nil {
			return Access{}, fmt.Errorf("rbac: scan access: %w", err)
		}
		access.RoleCode = code
		if key != nil {
			access.Permissions = append(access.Permissions, *key)
		}
	}
	if err := rows.Err(); err != nil {
		return Access{}, fmt.Errorf("rbac: resolve access: %w", err)
	}
	return access, nil
}

var _ AccessSource = (*Resolver)(nil)

// BuildSnapshot packages resolved access into the session snapshot form.
func BuildSnapshot(access Access, now time.Time) shared.AccessSnapshot {
	permissions := access.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return shared.AccessSnapshot{
		RoleCode:    access.RoleCode,
		Permissions: permissions,
		SyncedAt:    now.UnixMilli(),
	}
}
