package claims

import "time"

// Update carries a partial claims change. Nil fields are "absent" and leave
// the existing value untouched; set fields win.
type Update struct {
	Role        *Role        `json:"role,omitempty"`
	FranchiseID *string      `json:"franchiseId,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	IsActive    *bool        `json:"isActive,omitempty"`
	UserType    *string      `json:"userType,omitempty"`
	AccessLevel *int         `json:"accessLevel,omitempty"`
	LastLoginAt *time.Time   `json:"lastLoginAt,omitempty"`
	UpdatedBy   *string      `json:"updatedBy,omitempty"`
}

// Merge applies updates on top of existing, right-biased per field.
// UpdatedAt is always stamped to the merge time, regardless of the inputs.
func Merge(existing Record, updates Update) Record {
	out := existing
	out.Permissions = NormalizePermissions(existing.Permissions)
	if updates.Role != nil {
		out.Role = *updates.Role
	}
	if updates.FranchiseID != nil {
		out.FranchiseID = *updates.FranchiseID
	}
	if updates.Permissions != nil {
		out.Permissions = NormalizePermissions(updates.Permissions)
	}
	if updates.IsActive != nil {
		out.IsActive = *updates.IsActive
	}
	if updates.UserType != nil {
		out.UserType = *updates.UserType
	}
	if updates.AccessLevel != nil {
		out.AccessLevel = *updates.AccessLevel
	}
	if updates.LastLoginAt != nil {
		out.LastLoginAt = *updates.LastLoginAt
	}
	if updates.UpdatedBy != nil {
		out.UpdatedBy = *updates.UpdatedBy
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}
