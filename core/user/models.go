package user

import (
	"strings"
)

// Roles
const (
	RoleDirector    = "director"
	RoleInstructor  = "instructor"
	RoleStudent     = "student"
	RoleAccountant  = "accountant"
	RoleTenantAdmin = "tenant_admin"

	// AnyRole matches every role, including unknown ones.
	AnyRole = "*"
)

var (
	AllRoles = []string{RoleDirector, RoleInstructor, RoleStudent, RoleAccountant, RoleTenantAdmin}

	Roles = []Role{
		{Name: "Director", Value: RoleDirector},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Student", Value: RoleStudent},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "Tenant Admin", Value: RoleTenantAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsKnownRole reports whether role (case-insensitive) is one of AllRoles.
func IsKnownRole(role string) bool {
	role = NormalizeRole(role)
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole trims and lowercases a role for comparisons and URL building.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// Profile is the identity of the logged-in user as returned by `/accounts/my/`.
type Profile struct {
	Idx           string   `json:"idx"`
	Email         string   `json:"email"`
	Role          string   `json:"role"`
	Gender        string   `json:"gender,omitempty"`
	UIPermissions []string `json:"ui_permissions"`
}

// NormalizedRole returns the lowercased role of the profile ("" for a nil profile).
func (p *Profile) NormalizedRole() string {
	if p == nil {
		return ""
	}
	return NormalizeRole(p.Role)
}

// DisplayName is used in greetings and logs.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if name := strings.SplitN(p.Email, "@", 2)[0]; name != "" {
		return name
	}
	return p.Idx
}
