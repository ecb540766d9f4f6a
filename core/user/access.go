package user

import "strings"

// Restriction describes who may reach a resource: any of Roles AND all of Permissions.
// Empty Roles (or one holding AnyRole) allow every role; empty Permissions require none.
type Restriction struct {
	Roles       []string
	Permissions []string
}

// Restricted is anything guarded by a Restriction, e.g. a route descriptor.
type Restricted interface {
	AccessRestriction() Restriction
}

func (r Restriction) AccessRestriction() Restriction { return r }

// CanAccess reports whether usr satisfies the restriction.
// AnyRole only waives the role check, never the permission check.
func CanAccess(usr *Profile, r Restriction) bool {
	if usr == nil {
		return false
	}
	return roleAllowed(usr.Role, r.Roles) && hasAllPermissions(usr.UIPermissions, r.Permissions)
}

// CanAccessRoute is CanAccess for any Restricted value. A nil value is never accessible.
func CanAccessRoute(usr *Profile, res Restricted) bool {
	if res == nil {
		return false
	}
	return CanAccess(usr, res.AccessRestriction())
}

// HasPermission reports whether usr holds perm (case-insensitive).
func HasPermission(usr *Profile, perm string) bool {
	if usr == nil || strings.TrimSpace(perm) == "" {
		return false
	}
	return containsFold(usr.UIPermissions, perm)
}

func roleAllowed(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	role = NormalizeRole(role)
	for _, r := range allowed {
		r = NormalizeRole(r)
		if r == AnyRole || (role != "" && r == role) {
			return true
		}
	}
	return false
}

func hasAllPermissions(held, required []string) bool {
	for _, perm := range required {
		if !containsFold(held, perm) {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), s) {
			return true
		}
	}
	return false
}
