package roles

import (
	"context"
	"fmt"
	"sort"

	"github.com/nusapos/nusapos/internal/rbac"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListGrants(ctx context.Context, roleID int64) ([]string, error)
	ReplaceGrants(ctx context.Context, roleID int64, keys []string) error
}

// Service handles role business logic. Grants are validated against the
// static matrix before touching storage, so a typo cannot mint a
// capability the guards will never honor.
type Service struct {
	repo  RepositoryPort
	index *rbac.Index
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, index *rbac.Index) *Service {
	return &Service{repo: repo, index: index}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a single role.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// RoleGrants returns the permission keys granted to a role.
func (s *Service) RoleGrants(ctx context.Context, id int64) ([]string, error) {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, id)
}

// SetRoleGrants replaces a role's grants with the given keys, deduplicated
// and sorted. Unknown keys are rejected up front.
func (s *Service) SetRoleGrants(ctx context.Context, id int64, keys []string) ([]string, error) {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return nil, err
	}
	unique := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, _, ok := rbac.Key(key).Split(); !ok {
			return nil, fmt.Errorf("roles: malformed permission key %q", key)
		}
		unique[key] = struct{}{}
	}
	deduped := make([]string, 0, len(unique))
	for key := range unique {
		deduped = append(deduped, key)
	}
	sort.Strings(deduped)
	if err := s.repo.ReplaceGrants(ctx, id, deduped); err != nil {
		return nil, err
	}
	return deduped, nil
}

// DefaultGrants returns the matrix-derived grants for a role code, used to
// seed a freshly created role.
func (s *Service) DefaultGrants(code string) []string {
	keys := s.index.PermissionsForRole(rbac.RoleCode(code))
	grants := make([]string, len(keys))
	for i, key := range keys {
		grants[i] = string(key)
	}
	return grants
}
