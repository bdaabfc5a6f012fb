package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoles(t *testing.T) {
	got := ParseRoles(" Coordinator, vet,,coordinator ")
	assert.Equal(t, []Role{RoleCoordinator, RoleVet}, got)
	assert.Empty(t, ParseRoles(""))
}

func TestClaims_HasAnyRole(t *testing.T) {
	c := Claims{UserID: "u-1", Roles: []Role{RoleVolunteer}}

	assert.True(t, c.HasAnyRole(RoleAdmin, RoleVolunteer))
	assert.False(t, c.HasAnyRole(RoleCoordinator))
	assert.False(t, Claims{}.HasAnyRole(RoleVolunteer))
}
