// Package users proxies operator account management to the billing backend.
// The dashboard holds no user records of its own; it validates, forwards and
// audits.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Draft is the account payload accepted from the dashboard.
type Draft struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=admin viewer"`
}

// Directory is the slice of the backend API account management needs.
type Directory interface {
	ListUsers(ctx context.Context) ([]backend.User, error)
	CreateUser(ctx context.Context, draft backend.UserDraft) (backend.User, error)
	UpdateUser(ctx context.Context, id int64, draft backend.UserDraft) (backend.User, error)
	DeactivateUser(ctx context.Context, id int64) error
}

// Service validates drafts against the closed role set and forwards them.
type Service struct {
	directory Directory
}

// NewService constructs the account management service.
func NewService(directory Directory) *Service {
	return &Service{directory: directory}
}

// List returns every operator account.
func (s *Service) List(ctx context.Context) ([]backend.User, error) {
	return s.directory.ListUsers(ctx)
}

// Create registers a new operator account.
func (s *Service) Create(ctx context.Context, draft Draft) (backend.User, error) {
	wire, err := toWire(draft)
	if err != nil {
		return backend.User{}, err
	}
	return s.directory.CreateUser(ctx, wire)
}

// Update replaces the mutable fields of an account.
func (s *Service) Update(ctx context.Context, id int64, draft Draft) (backend.User, error) {
	wire, err := toWire(draft)
	if err != nil {
		return backend.User{}, err
	}
	return s.directory.UpdateUser(ctx, id, wire)
}

// Deactivate disables an account.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.directory.DeactivateUser(ctx, id)
}

// toWire normalizes a draft and re-checks the role against the closed enum.
// The backend must never learn a role this codebase cannot represent.
func toWire(draft Draft) (backend.UserDraft, error) {
	role, err := auth.ParseRole(draft.Role)
	if err != nil {
		return backend.UserDraft{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return backend.UserDraft{
		Email:     strings.ToLower(strings.TrimSpace(draft.Email)),
		FirstName: strings.TrimSpace(draft.FirstName),
		LastName:  strings.TrimSpace(draft.LastName),
		Role:      role.String(),
	}, nil
}
