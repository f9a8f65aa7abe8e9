// Package guard turns authentication state and a claim record into a
// routing decision for presentation-layer callers.
package guard

import (
	"github.com/lumina-lms/lumina-authz/internal/authz"
	"github.com/lumina-lms/lumina-authz/internal/claims"
)

// Decision is the outcome of a guard check.
type Decision int

const (
	// DecisionPending means authentication state is still loading; the
	// caller shows a loading state. Not a terminal outcome.
	DecisionPending Decision = iota
	// DecisionRender allows the protected content.
	DecisionRender
	// DecisionRedirectLogin sends the caller to the login flow.
	DecisionRedirectLogin
	// DecisionRedirectUnauthorized sends the caller to the unauthorized page.
	DecisionRedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionRender:
		return "render"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Requirement carries the access requirements for one protected surface.
// A zero Role means no role requirement; an empty Permissions list means no
// permission requirement.
type Requirement struct {
	Role        claims.Role
	Permissions []claims.Permission
}

// Decide runs the guard checks in short-circuit order: loading, then
// authentication, then required role (exact match), then required
// permissions (all must be present).
func Decide(authLoading, isAuthenticated bool, rec *claims.Record, req Requirement) Decision {
	if authLoading {
		return DecisionPending
	}
	if !isAuthenticated {
		return DecisionRedirectLogin
	}
	if req.Role != "" && !authz.HasRole(rec, req.Role) {
		return DecisionRedirectUnauthorized
	}
	if len(req.Permissions) > 0 && !authz.HasAllPermissions(rec, req.Permissions) {
		return DecisionRedirectUnauthorized
	}
	return DecisionRender
}
