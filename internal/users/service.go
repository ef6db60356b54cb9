package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string, roleID *int64) (*User, error)
	UpdateUser(ctx context.Context, id int64, name string, isActive bool) (*User, error)
	AssignRole(ctx context.Context, id int64, roleID *int64) (*User, error)
}

// Service handles user management business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, roleID *int64) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return nil, errors.New("users: email and name required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, email, name, string(hash), roleID)
}

// UpdateUser changes profile fields.
func (s *Service) UpdateUser(ctx context.Context, id int64, name string, isActive bool) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("users: name required")
	}
	return s.repo.UpdateUser(ctx, id, name, isActive)
}

// AssignRole sets or clears the user's role. The change reaches active
// sessions when their access snapshot next resyncs.
func (s *Service) AssignRole(ctx context.Context, id int64, roleID *int64) (*User, error) {
	return s.repo.AssignRole(ctx, id, roleID)
}
