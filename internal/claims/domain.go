// Package claims defines the canonical authorization state for a principal:
// the claim record, the role and permission catalogs, validation of untrusted
// claim payloads, and the merge semantics used by every mutation.
package claims

import "time"

// Role is an enumerated principal role, totally ordered by access level.
type Role string

const (
	// RolePending is the placeholder stamped on freshly issued tokens before
	// the claims authority has resolved the principal's real role. It is
	// never a valid record role.
	RolePending Role = "pending"

	RoleStudent        Role = "student"
	RoleParent         Role = "parent"
	RoleInstructor     Role = "instructor"
	RoleFranchiseAdmin Role = "franchise_admin"
	RoleSuperAdmin     Role = "super_admin"
)

// Roles lists the enumerated roles in ascending access-level order.
var Roles = []Role{RoleStudent, RoleParent, RoleInstructor, RoleFranchiseAdmin, RoleSuperAdmin}

// ParseRole maps a raw string to a Role. The pending placeholder is not a
// parseable role.
func ParseRole(raw string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Permission is an opaque capability token from the fixed catalog.
type Permission string

const (
	PermViewCourses       Permission = "VIEW_COURSES"
	PermCreateCourses     Permission = "CREATE_COURSES"
	PermEditCourses       Permission = "EDIT_COURSES"
	PermViewAssignments   Permission = "VIEW_ASSIGNMENTS"
	PermSubmitAssignments Permission = "SUBMIT_ASSIGNMENTS"
	PermGradeAssignments  Permission = "GRADE_ASSIGNMENTS"
	PermViewGrades        Permission = "VIEW_GRADES"
	PermViewChildProgress Permission = "VIEW_CHILD_PROGRESS"
	PermViewInvoices      Permission = "VIEW_INVOICES"
	PermViewStudents      Permission = "VIEW_STUDENTS"
	PermManageUsers       Permission = "MANAGE_USERS"
	PermManageEnrollments Permission = "MANAGE_ENROLLMENTS"
	PermManageBilling     Permission = "MANAGE_BILLING"
	PermViewReports       Permission = "VIEW_REPORTS"
	PermManageFranchises  Permission = "MANAGE_FRANCHISES"
	PermSystemSettings    Permission = "SYSTEM_SETTINGS"
)

// Record is the authorization state for one principal. Records are never
// mutated in place; every update produces a new authoritative version at the
// claims authority and is observed locally only after a token refresh.
type Record struct {
	Role        Role         `json:"role"`
	FranchiseID string       `json:"franchiseId,omitempty"`
	Permissions []Permission `json:"permissions"`
	IsActive    bool         `json:"isActive"`
	UserType    string       `json:"userType,omitempty"`
	AccessLevel int          `json:"accessLevel,omitempty"`
	LastLoginAt time.Time    `json:"lastLoginAt,omitzero"`
	UpdatedAt   time.Time    `json:"updatedAt,omitzero"`
	UpdatedBy   string       `json:"updatedBy,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Permissions = append([]Permission(nil), r.Permissions...)
	return &out
}

// Pending reports whether the record still carries the placeholder role, or
// no role at all. A pending record means the authority's claims have not yet
// propagated into the token.
func (r *Record) Pending() bool {
	return r == nil || r.Role == "" || r.Role == RolePending
}

// NormalizePermissions collapses duplicates, preserving first-seen order.
func NormalizePermissions(perms []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
