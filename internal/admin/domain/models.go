// Package domain contains admin identities and the marketplace accounts they act on.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleRegionalAdmin Role = "regional_admin"
	RoleModerator     Role = "moderator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleRegionalAdmin, RoleModerator:
		return true
	}
	return false
}

// Rank orders admin roles by privilege.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleRegionalAdmin:
		return 2
	case RoleModerator:
		return 1
	}
	return 0
}

// Identity is the admin capability record an account logs in with.
type Identity struct {
	ID                snowflake.ID                `gorm:"primaryKey" json:"id"`
	UserID            snowflake.ID                `gorm:"column:user_id;not null" json:"user_id"`
	Role              Role                        `gorm:"type:text;not null" json:"role"`
	AssignedCountries datatypes.JSONSlice[string] `gorm:"column:assigned_countries" json:"assigned_countries"`
	IsActive          bool                        `gorm:"column:is_active" json:"is_active"`
	CreatedAt         time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Identity) TableName() string { return "admin_identities" }

// Countries returns the normalized assignment list.
func (i Identity) Countries() []string {
	return NormalizeCountries(i.AssignedCountries)
}

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusDeleted   AccountStatus = "deleted"
)

type AccountRole string

const (
	AccountRoleUser          AccountRole = "user"
	AccountRoleBusiness      AccountRole = "business"
	AccountRoleModerator     AccountRole = "moderator"
	AccountRoleRegionalAdmin AccountRole = "regional_admin"
	AccountRoleSuperAdmin    AccountRole = "super_admin"
)

func (r AccountRole) Valid() bool {
	switch r {
	case AccountRoleUser, AccountRoleBusiness, AccountRoleModerator, AccountRoleRegionalAdmin, AccountRoleSuperAdmin:
		return true
	}
	return false
}

// Rank places an account role on the admin role scale. Non-admin roles rank 0.
func (r AccountRole) Rank() int {
	role, ok := r.AdminRole()
	if !ok {
		return 0
	}
	return role.Rank()
}

// AdminRole maps an account role to the admin identity role it grants, if any.
func (r AccountRole) AdminRole() (Role, bool) {
	switch r {
	case AccountRoleModerator:
		return RoleModerator, true
	case AccountRoleRegionalAdmin:
		return RoleRegionalAdmin, true
	case AccountRoleSuperAdmin:
		return RoleSuperAdmin, true
	}
	return "", false
}

// Account is a marketplace user targeted by admin actions.
type Account struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email           string        `gorm:"type:text;not null" json:"email"`
	CountryCode     string        `gorm:"column:country_code" json:"country_code"`
	Status          AccountStatus `gorm:"type:text;not null" json:"status"`
	Role            AccountRole   `gorm:"type:text;not null" json:"role"`
	SuspendedReason *string       `gorm:"column:suspended_reason" json:"suspended_reason,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// NormalizeCountries upper-cases, de-duplicates and sorts country codes.
func NormalizeCountries(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
