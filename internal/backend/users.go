package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// User is the backend's account record for a dashboard operator.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserDraft is the payload for creating or updating an account.
type UserDraft struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// ListUsers returns every account, active or not.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var payload struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// CreateUser registers a new account. A duplicate email maps to
// shared.ErrConflict.
func (c *Client) CreateUser(ctx context.Context, draft UserDraft) (User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/users", draft, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUser replaces the mutable fields of an account.
func (c *Client) UpdateUser(ctx context.Context, id int64, draft UserDraft) (User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", id), draft, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// DeactivateUser disables an account. The backend keeps the record for the
// audit history, it only stops authenticating.
func (c *Client) DeactivateUser(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", id), nil, nil)
}
