// Package authz answers permission, role, and route-access questions over a
// claim record. Checks are pure set operations; an inactive record denies
// every permission and route check regardless of what the permission set
// contains.
package authz

import (
	"context"

	"github.com/lumina-lms/lumina-authz/internal/claims"
)

// HasPermission reports whether the record grants a single permission.
// A nil or inactive record grants nothing.
func HasPermission(rec *claims.Record, perm claims.Permission) bool {
	if rec == nil || !rec.IsActive {
		return false
	}
	for _, p := range rec.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the given permissions is
// granted. An empty requirement list has nothing to satisfy it, so the
// result is false.
func HasAnyPermission(rec *claims.Record, perms []claims.Permission) bool {
	if rec == nil || !rec.IsActive {
		return false
	}
	granted := permissionSet(rec.Permissions)
	for _, p := range perms {
		if _, ok := granted[p]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every given permission is granted. An
// empty requirement list is vacuously satisfied by any non-nil active
// record, matching the route guard's "no requirement" default.
func HasAllPermissions(rec *claims.Record, perms []claims.Permission) bool {
	if rec == nil || !rec.IsActive {
		return false
	}
	granted := permissionSet(rec.Permissions)
	for _, p := range perms {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}

// HasRole reports exact role equality. There is no level-based subsumption:
// a super_admin does not "have" the instructor role.
func HasRole(rec *claims.Record, role claims.Role) bool {
	return rec != nil && rec.Role == role
}

// RouteRule describes the requirement guarding one route: either an exact
// role or a set of permissions that must all be present. A rule with both
// zero-valued is meaningless and never stored.
type RouteRule struct {
	Role        claims.Role
	Permissions []claims.Permission
}

// RouteTable maps route identifiers to their access rules. Routes without an
// entry are accessible to any authenticated, active principal.
type RouteTable map[string]RouteRule

// CanAccess decides whether the record may access the identified route.
func (t RouteTable) CanAccess(rec *claims.Record, routeID string) bool {
	if rec == nil || !rec.IsActive {
		return false
	}
	rule, ok := t[routeID]
	if !ok {
		return true
	}
	if rule.Role != "" {
		return HasRole(rec, rule.Role)
	}
	return HasAllPermissions(rec, rule.Permissions)
}

// DefaultRoutes is the platform's static route access table.
var DefaultRoutes = RouteTable{
	"courses/create":       {Permissions: []claims.Permission{claims.PermCreateCourses}},
	"courses/edit":         {Permissions: []claims.Permission{claims.PermEditCourses}},
	"instructor/gradebook": {Permissions: []claims.Permission{claims.PermGradeAssignments}},
	"instructor/students":  {Permissions: []claims.Permission{claims.PermViewStudents}},
	"parent/progress":      {Permissions: []claims.Permission{claims.PermViewChildProgress}},
	"parent/invoices":      {Permissions: []claims.Permission{claims.PermViewInvoices}},
	"admin/users":          {Permissions: []claims.Permission{claims.PermManageUsers}},
	"admin/enrollments":    {Permissions: []claims.Permission{claims.PermManageEnrollments}},
	"admin/billing":        {Permissions: []claims.Permission{claims.PermManageBilling}},
	"admin/reports":        {Permissions: []claims.Permission{claims.PermViewReports}},
	"admin/franchises":     {Role: claims.RoleSuperAdmin},
	"admin/settings":       {Permissions: []claims.Permission{claims.PermSystemSettings}},
}

// CanAccessRoute checks the record against the default route table.
func CanAccessRoute(rec *claims.Record, routeID string) bool {
	return DefaultRoutes.CanAccess(rec, routeID)
}

// ClaimsSource yields the current principal's claim record. Implementations
// must re-derive from a fresh token read on every call; resolvers never
// cache across calls.
type ClaimsSource interface {
	CurrentPrincipalClaims(ctx context.Context) (*claims.Record, error)
}

// Resolver answers authorization questions for the current principal by
// re-reading the claims source per check.
type Resolver struct {
	source ClaimsSource
	routes RouteTable
}

// NewResolver constructs a Resolver. A nil routes table falls back to
// DefaultRoutes.
func NewResolver(source ClaimsSource, routes RouteTable) *Resolver {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Resolver{source: source, routes: routes}
}

// Current returns the current principal's record, nil when anonymous.
func (r *Resolver) Current(ctx context.Context) (*claims.Record, error) {
	return r.source.CurrentPrincipalClaims(ctx)
}

// CurrentHasPermission checks one permission for the current principal.
func (r *Resolver) CurrentHasPermission(ctx context.Context, perm claims.Permission) (bool, error) {
	rec, err := r.source.CurrentPrincipalClaims(ctx)
	if err != nil {
		return false, err
	}
	return HasPermission(rec, perm), nil
}

// CurrentCanAccessRoute checks route access for the current principal.
func (r *Resolver) CurrentCanAccessRoute(ctx context.Context, routeID string) (bool, error) {
	rec, err := r.source.CurrentPrincipalClaims(ctx)
	if err != nil {
		return false, err
	}
	return r.routes.CanAccess(rec, routeID), nil
}

func permissionSet(perms []claims.Permission) map[claims.Permission]struct{} {
	set := make(map[claims.Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
