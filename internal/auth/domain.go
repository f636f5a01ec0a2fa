// Package auth resolves who is calling the dashboard. Credentials live with
// the external auth service; this package only holds the bearer token in the
// session and a short-lived cached principal.
package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of dashboard roles. Values outside the set are not
// representable: ParseRole is the only way in, and it rejects unknown input
// so a surprising upstream role can never unlock menus or routes.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// ParseRole maps an upstream role string onto the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("auth: unknown role %q", raw)
	}
}

// Valid reports whether r is one of the closed set. The zero value is not.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated dashboard user as reported by the auth
// service. Absence of a Principal is the definition of "unauthenticated";
// there is no anonymous principal.
type Principal struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// FullName joins the name parts for display and audit rows.
func (p Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
