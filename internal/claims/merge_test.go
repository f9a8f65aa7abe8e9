package claims

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeRightBiased(t *testing.T) {
	existing := NewDefaultRecord(RoleStudent, nil)
	role := RoleInstructor
	franchise := "fr-007"
	inactive := false
	level := 3
	by := "admin-1"

	merged := Merge(existing, Update{
		Role:        &role,
		FranchiseID: &franchise,
		Permissions: []Permission{PermCreateCourses, PermViewCourses},
		IsActive:    &inactive,
		AccessLevel: &level,
		UpdatedBy:   &by,
	})

	assert.Equal(t, RoleInstructor, merged.Role)
	assert.Equal(t, "fr-007", merged.FranchiseID)
	assert.Equal(t, []Permission{PermCreateCourses, PermViewCourses}, merged.Permissions)
	assert.False(t, merged.IsActive)
	assert.Equal(t, 3, merged.AccessLevel)
	assert.Equal(t, "admin-1", merged.UpdatedBy)
}

func TestMergeAbsentFieldsKeepExisting(t *testing.T) {
	existing := NewDefaultRecord(RoleParent, nil)
	merged := Merge(existing, Update{})
	assert.Equal(t, existing.Role, merged.Role)
	assert.Equal(t, existing.Permissions, merged.Permissions)
	assert.Equal(t, existing.IsActive, merged.IsActive)
	assert.Equal(t, existing.AccessLevel, merged.AccessLevel)
}

func TestMergeAlwaysStampsUpdatedAt(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	existing := NewDefaultRecord(RoleStudent, nil)
	existing.UpdatedAt = past

	merged := Merge(existing, Update{})
	assert.False(t, merged.UpdatedAt.Before(past), "UpdatedAt must be >= existing")
	assert.WithinDuration(t, time.Now().UTC(), merged.UpdatedAt, time.Minute)
}

func TestMergeCollapsesDuplicatePermissions(t *testing.T) {
	existing := NewDefaultRecord(RoleStudent, nil)
	merged := Merge(existing, Update{
		Permissions: []Permission{PermViewGrades, PermViewGrades, PermViewCourses},
	})
	assert.Equal(t, []Permission{PermViewGrades, PermViewCourses}, merged.Permissions)
}

func TestCloneIsDeep(t *testing.T) {
	rec := NewDefaultRecord(RoleStudent, nil)
	clone := rec.Clone()
	clone.Permissions[0] = Permission("TAMPERED")
	assert.NotEqual(t, rec.Permissions[0], clone.Permissions[0])
}

func TestPending(t *testing.T) {
	var nilRec *Record
	assert.True(t, nilRec.Pending())
	assert.True(t, (&Record{Role: RolePending}).Pending())
	assert.True(t, (&Record{}).Pending())
	assert.False(t, (&Record{Role: RoleStudent}).Pending())
}
