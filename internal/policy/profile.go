package policy

import "github.com/diewo77/pharmacy-pos/internal/models"

// Profile is the permission set granted to a role.
type Profile struct {
	Role        models.Role
	permissions []Permission
}

func NewProfile(role models.Role, permissions ...Permission) *Profile {
	return &Profile{Role: role, permissions: permissions}
}

// Permissions returns a copy of the granted permissions.
func (p *Profile) Permissions() []Permission {
	if p == nil {
		return nil
	}
	out := make([]Permission, len(p.permissions))
	copy(out, p.permissions)
	return out
}

func (p *Profile) HasPermission(requested Permission) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// Sellers run the counter: catalog, clients, sales, alerts and reports.
// Staff accounts are admin-only.
var roleProfiles = map[models.Role]*Profile{
	models.RoleAdmin: NewProfile(models.RoleAdmin, PermissionSuperAdmin),
	models.RoleSeller: NewProfile(models.RoleSeller,
		All(ResourceProduct),
		All(ResourceClient),
		All(ResourceSale),
		All(ResourceAlert),
		All(ResourceReport),
	),
}

// ProfileFor returns the profile of role, or nil for an unknown role.
func ProfileFor(role models.Role) *Profile {
	return roleProfiles[role]
}
