// AngelaMos | 2026
// policy.go

// Package policy holds the compiled-in role to permission table. Every
// lookup is a pure function of its arguments; the table is never mutated
// after package initialization.
package policy

import (
	"fmt"
	"slices"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

type Role string

const (
	RoleAdmin             Role = "admin"
	RoleHRManager         Role = "hr_manager"
	RoleFinanceManager    Role = "finance_manager"
	RoleDepartmentManager Role = "department_manager"
	RoleEmployee          Role = "employee"
)

type Permission string

const (
	ManageEmployees Permission = "manage_employees"
	ManageFinance   Permission = "manage_finance"
	ViewReports     Permission = "view_reports"
	ManageUsers     Permission = "manage_users"
)

var allRoles = []Role{
	RoleAdmin,
	RoleHRManager,
	RoleFinanceManager,
	RoleDepartmentManager,
	RoleEmployee,
}

var allPermissions = []Permission{
	ManageEmployees,
	ManageFinance,
	ViewReports,
	ManageUsers,
}

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin:             set(ManageEmployees, ManageFinance, ViewReports, ManageUsers),
	RoleHRManager:         set(ManageEmployees, ManageFinance, ViewReports),
	RoleFinanceManager:    set(ManageFinance, ViewReports),
	RoleDepartmentManager: set(ManageEmployees, ViewReports),
	RoleEmployee:          set(),
}

func set(perms ...Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// Check reports whether role holds perm. Unknown roles hold nothing.
func Check(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, granted := perms[perm]
	return granted
}

// CheckAny reports whether role holds at least one of perms.
func CheckAny(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if Check(role, p) {
			return true
		}
	}
	return false
}

// PermissionsOf returns the permissions of role in declaration order.
func PermissionsOf(role Role) []Permission {
	out := make([]Permission, 0, len(allPermissions))
	for _, p := range allPermissions {
		if Check(role, p) {
			out = append(out, p)
		}
	}
	return out
}

func Roles() []Role {
	return slices.Clone(allRoles)
}

func Permissions() []Permission {
	return slices.Clone(allPermissions)
}

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q: %w", s, core.ErrInvalidInput)
	}
	return r, nil
}

// Grant is one row of the persisted permissions table.
type Grant struct {
	Role       Role       `db:"role"       json:"role"`
	Permission Permission `db:"permission" json:"permission"`
}

// Matrix flattens the table into rows, ordered by role then permission.
func Matrix() []Grant {
	grants := make([]Grant, 0, len(allRoles)*len(allPermissions))
	for _, r := range allRoles {
		for _, p := range PermissionsOf(r) {
			grants = append(grants, Grant{Role: r, Permission: p})
		}
	}
	return grants
}
