// Package access decides which countries an admin identity may see and act on.
package access

import (
	"sort"
	"strings"

	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
)

// SelectionAll is the pseudo-country meaning every accessible country.
const SelectionAll = "ALL"

// Scope is recomputed for every request and never cached.
type Scope struct {
	Accessible   []string `json:"accessible"`
	IsRestricted bool     `json:"is_restricted"`
	Selectable   []string `json:"selectable"`
}

// AccessibleCountries returns every known country for super admins and the
// intersection of known and assigned countries for everyone else.
func AccessibleCountries(identity admindomain.Identity, known []string) []string {
	knownSet := normalizeSet(known)
	if identity.Role == admindomain.RoleSuperAdmin {
		return sortedKeys(knownSet)
	}

	out := make([]string, 0, len(identity.AssignedCountries))
	for _, code := range admindomain.NormalizeCountries(identity.AssignedCountries) {
		if _, ok := knownSet[code]; ok {
			out = append(out, code)
		}
	}
	return out
}

func CanAccess(identity admindomain.Identity, known []string, code string) bool {
	code = normalizeCode(code)
	if code == "" || code == SelectionAll {
		return false
	}
	for _, accessible := range AccessibleCountries(identity, known) {
		if accessible == code {
			return true
		}
	}
	return false
}

func IsRestricted(identity admindomain.Identity) bool {
	return identity.Role != admindomain.RoleSuperAdmin && len(identity.Countries()) > 0
}

func NewScope(identity admindomain.Identity, known []string) Scope {
	accessible := AccessibleCountries(identity, known)
	selectable := accessible
	if identity.Role == admindomain.RoleSuperAdmin {
		selectable = append([]string{SelectionAll}, accessible...)
	}
	return Scope{
		Accessible:   accessible,
		IsRestricted: IsRestricted(identity),
		Selectable:   selectable,
	}
}

// ResolveSelection returns the selection that takes effect when identity asks
// for requested while current is selected. A request outside the scope never
// errors: the previous selection is kept, or the single accessible country is
// auto-selected when nothing was selected yet. A current selection that left
// the scope since it was stored counts as no selection.
func ResolveSelection(identity admindomain.Identity, known []string, current, requested string) string {
	current = normalizeCode(current)
	requested = normalizeCode(requested)
	accessible := AccessibleCountries(identity, known)

	if identity.Role == admindomain.RoleSuperAdmin {
		if requested == SelectionAll || contains(accessible, requested) {
			return requested
		}
		if current == SelectionAll || contains(accessible, current) {
			return current
		}
		return ""
	}

	if requested != SelectionAll && contains(accessible, requested) {
		return requested
	}
	if contains(accessible, current) {
		return current
	}
	if len(accessible) == 1 {
		return accessible[0]
	}
	return ""
}

func contains(values []string, code string) bool {
	if code == "" {
		return false
	}
	for _, v := range values {
		if v == code {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code = normalizeCode(code); code != "" && code != SelectionAll {
			set[code] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
