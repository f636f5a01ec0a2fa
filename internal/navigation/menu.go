// Package navigation owns the dashboard menu tree and the role filter that
// decides what each principal gets to see.
package navigation

import "github.com/trunkline-ops/trunkline/internal/auth"

// Entry is one menu node: a leaf when Path is set, a group when it carries
// Children. AllowedRoles is always an explicit enumeration; there is no
// wildcard, so a role the entry does not name never sees it.
type Entry struct {
	Label        string      `json:"label"`
	Icon         string      `json:"icon,omitempty"`
	Path         string      `json:"path,omitempty"`
	AllowedRoles []auth.Role `json:"-"`
	Children     []Entry     `json:"children,omitempty"`
}

// IsGroup reports whether the entry is a grouping node.
func (e Entry) IsGroup() bool {
	return len(e.Children) > 0
}

func (e Entry) allows(role auth.Role) bool {
	for _, allowed := range e.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Filter returns the subtree visible to role, preserving relative order.
// A leaf survives iff the role is enumerated; a group survives iff the role
// is enumerated AND at least one child survives. An invalid role yields an
// empty menu: filtering fails closed, never open.
func Filter(tree []Entry, role auth.Role) []Entry {
	filtered := make([]Entry, 0, len(tree))
	if !role.Valid() {
		return filtered
	}
	for _, entry := range tree {
		if !entry.allows(role) {
			continue
		}
		if entry.IsGroup() {
			children := Filter(entry.Children, role)
			if len(children) == 0 {
				continue
			}
			entry.Children = children
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

var everyone = []auth.Role{auth.RoleAdmin, auth.RoleViewer}
var adminOnly = []auth.Role{auth.RoleAdmin}

// Default returns the dashboard's full menu tree. Role restrictions live
// here and nowhere else; handlers and the shell consume the filtered view.
func Default() []Entry {
	return []Entry{
		{Label: "Dashboard", Icon: "home", Path: "/dashboard", AllowedRoles: everyone},
		{
			Label: "Reports", Icon: "bar-chart", AllowedRoles: everyone,
			Children: []Entry{
				{Label: "Revenue", Icon: "trending-up", Path: "/reports/revenue", AllowedRoles: everyone},
				{Label: "Collections", Icon: "credit-card", Path: "/reports/collections", AllowedRoles: everyone},
				{Label: "Receivables", Icon: "file-text", Path: "/reports/receivables", AllowedRoles: everyone},
				{Label: "Vehicle Park", Icon: "truck", Path: "/reports/vehicle-park", AllowedRoles: everyone},
			},
		},
		{Label: "Billing Upload", Icon: "upload", Path: "/billing-upload", AllowedRoles: adminOnly},
		{Label: "Anomaly Review", Icon: "alert-triangle", Path: "/anomalies", AllowedRoles: everyone},
		{Label: "Calendar", Icon: "calendar", Path: "/calendar", AllowedRoles: everyone},
		{Label: "Manage Users", Icon: "users", Path: "/manage-users", AllowedRoles: adminOnly},
		{Label: "Profile", Icon: "user", Path: "/profile", AllowedRoles: everyone},
	}
}
