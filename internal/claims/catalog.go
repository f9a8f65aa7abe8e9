package claims

import "time"

// defaultPermissions is the fixed role to default permission-set table.
// Administrators may grant a narrower or broader custom set per principal;
// this table is only the starting point and the reset target.
var defaultPermissions = map[Role][]Permission{
	RoleStudent: {
		PermViewCourses,
		PermViewAssignments,
		PermSubmitAssignments,
		PermViewGrades,
	},
	RoleParent: {
		PermViewCourses,
		PermViewChildProgress,
		PermViewGrades,
		PermViewInvoices,
	},
	RoleInstructor: {
		PermViewCourses,
		PermCreateCourses,
		PermEditCourses,
		PermGradeAssignments,
		PermViewAssignments,
		PermViewStudents,
	},
	RoleFranchiseAdmin: {
		PermViewCourses,
		PermCreateCourses,
		PermEditCourses,
		PermViewStudents,
		PermManageUsers,
		PermManageEnrollments,
		PermManageBilling,
		PermViewReports,
	},
	RoleSuperAdmin: {
		PermViewCourses,
		PermCreateCourses,
		PermEditCourses,
		PermViewStudents,
		PermManageUsers,
		PermManageEnrollments,
		PermManageBilling,
		PermViewReports,
		PermManageFranchises,
		PermSystemSettings,
	},
}

var defaultAccessLevels = map[Role]int{
	RoleStudent:        1,
	RoleParent:         2,
	RoleInstructor:     3,
	RoleFranchiseAdmin: 4,
	RoleSuperAdmin:     5,
}

// DefaultPermissions returns the default permission set for a role. Unknown
// roles yield an empty set, never an error.
func DefaultPermissions(role Role) []Permission {
	perms, ok := defaultPermissions[role]
	if !ok {
		return []Permission{}
	}
	return append([]Permission(nil), perms...)
}

// DefaultAccessLevel returns the numeric access level for a role, or 0 for
// an unknown role.
func DefaultAccessLevel(role Role) int {
	return defaultAccessLevels[role]
}

// NewDefaultRecord builds an active record carrying the role's default
// permissions and access level, then applies overrides (overrides win).
// It serves both administrative "reset to role defaults" actions and the
// safe fallback when no record can be resolved.
func NewDefaultRecord(role Role, overrides *Update) Record {
	rec := Record{
		Role:        role,
		Permissions: DefaultPermissions(role),
		IsActive:    true,
		AccessLevel: DefaultAccessLevel(role),
		UpdatedAt:   time.Now().UTC(),
	}
	if overrides != nil {
		rec = Merge(rec, *overrides)
	}
	return rec
}
