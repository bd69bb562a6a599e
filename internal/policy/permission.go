// Package policy maps staff roles to permissions and guards routes with them.
// A permission has the form "resource:action", e.g. "sale:create".
package policy

import "strings"

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
	ActionExport Action = "export"
)

// Resource types guarded by the API.
const (
	ResourceProduct = "product"
	ResourceClient  = "client"
	ResourceSale    = "sale"
	ResourceAlert   = "alert"
	ResourceReport  = "report"
	ResourceUser    = "user"
)

// Permission represents an allowed action on a resource type.
type Permission string

const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// All grants every action on resourceType.
func All(resourceType string) Permission {
	return Permission(resourceType + ":" + WildcardAll)
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether p grants requested. "*:*" grants everything and
// "sale:*" grants any sale action, including a requested "sale:*".
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}
