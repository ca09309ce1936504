package access

import (
	"testing"

	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	"github.com/stretchr/testify/assert"
)

var known = []string{"BJ", "CI", "SN", "TG"}

func regional(countries ...string) admindomain.Identity {
	return admindomain.Identity{ID: 2, Role: admindomain.RoleRegionalAdmin, AssignedCountries: countries, IsActive: true}
}

func superAdmin() admindomain.Identity {
	return admindomain.Identity{ID: 1, Role: admindomain.RoleSuperAdmin, IsActive: true}
}

func TestSingleAssignedCountryIsAutoSelected(t *testing.T) {
	assert.Equal(t, "BJ", ResolveSelection(regional("BJ"), known, "", ""))
	assert.Equal(t, "BJ", ResolveSelection(regional("BJ"), known, "", SelectionAll))
}

func TestOutOfScopeRequestKeepsCurrentSelection(t *testing.T) {
	identity := regional("BJ")
	current := ResolveSelection(identity, known, "", "")

	assert.Equal(t, current, ResolveSelection(identity, known, current, "SN"))
	assert.NotEqual(t, "SN", ResolveSelection(identity, known, current, "SN"))
	assert.False(t, CanAccess(identity, known, "SN"))
	assert.True(t, CanAccess(identity, known, "bj"))
}

func TestRegionalAdminCannotSelectAll(t *testing.T) {
	identity := regional("BJ", "CI")
	assert.Equal(t, "CI", ResolveSelection(identity, known, "CI", SelectionAll))
	assert.Equal(t, "", ResolveSelection(identity, known, "", SelectionAll))
	assert.Equal(t, "BJ", ResolveSelection(identity, known, "CI", "BJ"))
}

func TestSuperAdminSelectsAnything(t *testing.T) {
	identity := superAdmin()
	assert.Equal(t, SelectionAll, ResolveSelection(identity, known, "BJ", "all"))
	assert.Equal(t, "TG", ResolveSelection(identity, known, SelectionAll, "TG"))
	assert.Equal(t, "BJ", ResolveSelection(identity, known, "BJ", "ZZ"))
}

func TestStaleSelectionIsDropped(t *testing.T) {
	// BJ was selected under an earlier assignment.
	reassigned := regional("CI", "TG")
	assert.Equal(t, "", ResolveSelection(reassigned, known, "BJ", "BJ"))
	assert.Equal(t, "", ResolveSelection(reassigned, known, "BJ", "SN"))
	assert.Equal(t, "TG", ResolveSelection(reassigned, known, "BJ", "TG"))
	assert.Equal(t, "CI", ResolveSelection(regional("CI"), known, "BJ", "SN"))

	assert.Equal(t, "", ResolveSelection(superAdmin(), []string{"CI", "TG"}, "BJ", "BJ"))
	assert.Equal(t, SelectionAll, ResolveSelection(superAdmin(), []string{"CI"}, SelectionAll, "ZZ"))
}

func TestAccessibleCountriesIntersectsKnown(t *testing.T) {
	assert.Equal(t, []string{"BJ"}, AccessibleCountries(regional("BJ", "ZZ"), known))
	assert.Equal(t, known, AccessibleCountries(superAdmin(), known))
	assert.Empty(t, AccessibleCountries(regional(), known))
}

func TestIsRestricted(t *testing.T) {
	assert.True(t, IsRestricted(regional("BJ")))
	assert.False(t, IsRestricted(regional()))
	assert.False(t, IsRestricted(admindomain.Identity{Role: admindomain.RoleSuperAdmin, AssignedCountries: []string{"BJ"}}))
}

func TestNewScope(t *testing.T) {
	scope := NewScope(superAdmin(), known)
	assert.Equal(t, SelectionAll, scope.Selectable[0])
	assert.False(t, scope.IsRestricted)

	scope = NewScope(regional("SN"), known)
	assert.Equal(t, []string{"SN"}, scope.Selectable)
	assert.True(t, scope.IsRestricted)
}
