package auth

import "strings"

type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleAdmin         Role = "ADMIN"
	RoleCustomer      Role = "CUSTOMER"
	RoleMarketing     Role = "MARKETING"
	RoleBranchManager Role = "BRANCH_MANAGER"
	RoleBackoffice    Role = "BACKOFFICE"
)

// ParseRole normalises a role name ("branch-manager", "ROLE_MARKETING", ...).
func ParseRole(s string) (Role, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ROLE_")
	s = strings.ReplaceAll(s, "-", "_")
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleAdmin, RoleCustomer, RoleMarketing, RoleBranchManager, RoleBackoffice:
		return r, true
	}
	return "", false
}

// Actor is the acting user for a workflow call.
type Actor struct {
	ID       string
	Roles    []Role
	BranchID string
}

func (a Actor) Has(r Role) bool {
	for _, x := range a.Roles {
		if x == r {
			return true
		}
	}
	return false
}

func (a Actor) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if a.Has(r) {
			return true
		}
	}
	return false
}

// IsAdmin actors bypass the role table.
func (a Actor) IsAdmin() bool { return a.HasAny(RoleSuperAdmin, RoleAdmin) }

// IsGlobal actors bypass branch scoping.
func (a Actor) IsGlobal() bool { return a.HasAny(RoleSuperAdmin, RoleAdmin, RoleBackoffice) }

// IsCustomerOnly is true for customers without any internal role.
func (a Actor) IsCustomerOnly() bool {
	return a.Has(RoleCustomer) && !a.HasAny(RoleSuperAdmin, RoleAdmin, RoleMarketing, RoleBranchManager, RoleBackoffice)
}
