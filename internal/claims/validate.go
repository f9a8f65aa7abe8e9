package claims

import (
	"fmt"
	"math"
	"time"
)

// ValidationResult accumulates every rule failure instead of stopping at the
// first one, so callers can report a complete picture to administrators.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate checks an untrusted claims payload (decoded JSON) against the
// record shape. Rules run in order and accumulate:
//
//  1. the payload must be non-nil
//  2. role must be present and one of the enumerated roles
//  3. permissions, if present, must be a homogeneous string set
//  4. isActive, if present, must be a boolean
//  5. accessLevel, if present, must be an integer
//
// An accessLevel outside the 1-5 catalog range is reported as a warning,
// not an error. No access-control decision reads accessLevel, so rejecting
// it outright would only break administrative tooling; see DESIGN.md.
func Validate(raw map[string]any) ValidationResult {
	res := ValidationResult{Valid: true}
	fail := func(msg string) {
		res.Valid = false
		res.Errors = append(res.Errors, msg)
	}

	if raw == nil {
		fail("claims payload is required")
		return res
	}

	switch role := raw["role"].(type) {
	case nil:
		fail("role is required")
	case string:
		if _, ok := ParseRole(role); !ok {
			fail(fmt.Sprintf("role %q is not a recognized role", role))
		}
	default:
		fail("role must be a string")
	}

	if perms, present := raw["permissions"]; present {
		if !isStringSet(perms) {
			fail("permissions must be a set of strings")
		}
	}

	if active, present := raw["isActive"]; present {
		if _, ok := active.(bool); !ok {
			fail("isActive must be a boolean")
		}
	}

	if level, present := raw["accessLevel"]; present {
		n, ok := asInt(level)
		if !ok {
			fail("accessLevel must be an integer")
		} else if n < 1 || n > 5 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("accessLevel %d is outside the catalog range 1-5", n))
		}
	}

	return res
}

// ValidateRecord checks a typed record: non-nil and an enumerated role.
// Shape errors cannot occur on a typed record, so the remaining Validate
// rules hold by construction.
func ValidateRecord(rec *Record) ValidationResult {
	res := ValidationResult{Valid: true}
	if rec == nil {
		res.Valid = false
		res.Errors = append(res.Errors, "claims payload is required")
		return res
	}
	if !rec.Role.Valid() {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("role %q is not a recognized role", rec.Role))
	}
	if rec.AccessLevel != 0 && (rec.AccessLevel < 1 || rec.AccessLevel > 5) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("accessLevel %d is outside the catalog range 1-5", rec.AccessLevel))
	}
	return res
}

// RecordFromMap converts a validated payload into a typed record, applying
// the documented defaults: permissions empty, isActive true, accessLevel
// derived from the role when absent. Unmapped fields are ignored for forward
// compatibility.
func RecordFromMap(raw map[string]any) *Record {
	if raw == nil {
		return nil
	}
	rec := &Record{
		Permissions: []Permission{},
		IsActive:    true,
	}
	if role, ok := raw["role"].(string); ok {
		rec.Role = Role(role)
	}
	if fid, ok := raw["franchiseId"].(string); ok {
		rec.FranchiseID = fid
	}
	if perms, present := raw["permissions"]; present && isStringSet(perms) {
		rec.Permissions = NormalizePermissions(toPermissions(perms))
	}
	if active, ok := raw["isActive"].(bool); ok {
		rec.IsActive = active
	}
	if ut, ok := raw["userType"].(string); ok {
		rec.UserType = ut
	}
	if level, present := raw["accessLevel"]; present {
		if n, ok := asInt(level); ok {
			rec.AccessLevel = n
		}
	} else {
		rec.AccessLevel = DefaultAccessLevel(rec.Role)
	}
	if ts, ok := asTime(raw["lastLoginAt"]); ok {
		rec.LastLoginAt = ts
	}
	if ts, ok := asTime(raw["updatedAt"]); ok {
		rec.UpdatedAt = ts
	}
	if by, ok := raw["updatedBy"].(string); ok {
		rec.UpdatedBy = by
	}
	return rec
}

// AsMap renders the record in the payload shape accepted by Validate and by
// the claims authority.
func (r *Record) AsMap() map[string]any {
	if r == nil {
		return nil
	}
	out := map[string]any{
		"role":        string(r.Role),
		"permissions": permissionStrings(r.Permissions),
		"isActive":    r.IsActive,
	}
	if r.FranchiseID != "" {
		out["franchiseId"] = r.FranchiseID
	}
	if r.UserType != "" {
		out["userType"] = r.UserType
	}
	if r.AccessLevel != 0 {
		out["accessLevel"] = r.AccessLevel
	}
	if !r.LastLoginAt.IsZero() {
		out["lastLoginAt"] = r.LastLoginAt.UTC().Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		out["updatedAt"] = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if r.UpdatedBy != "" {
		out["updatedBy"] = r.UpdatedBy
	}
	return out
}

func permissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func isStringSet(v any) bool {
	switch vs := v.(type) {
	case []string:
		return true
	case []Permission:
		return true
	case []any:
		for _, item := range vs {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toPermissions(v any) []Permission {
	switch vs := v.(type) {
	case []Permission:
		return vs
	case []string:
		out := make([]Permission, len(vs))
		for i, s := range vs {
			out[i] = Permission(s)
		}
		return out
	case []any:
		out := make([]Permission, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, Permission(s))
			}
		}
		return out
	default:
		return nil
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		// Unix seconds, the shape token payloads carry.
		return time.Unix(int64(ts), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
