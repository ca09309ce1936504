// Package admintest creates the identity and account tables for package tests.
package admintest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/admin/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func CreateTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL,
		country_code TEXT NOT NULL,
		status TEXT NOT NULL,
		role TEXT NOT NULL,
		suspended_reason TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS admin_identities (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL UNIQUE,
		role TEXT NOT NULL,
		assigned_countries TEXT NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
}

func InsertAccount(t *testing.T, db *gorm.DB, id snowflake.ID, country string, status domain.AccountStatus, role domain.AccountRole) domain.Account {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	account := domain.Account{
		ID:          id,
		Email:       "user" + id.String() + "@example.com",
		CountryCode: country,
		Status:      status,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Exec(
		`INSERT INTO accounts (id, email, country_code, status, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.CountryCode, account.Status, account.Role, account.CreatedAt, account.UpdatedAt,
	).Error)
	return account
}

func InsertIdentity(t *testing.T, db *gorm.DB, id, userID snowflake.ID, role domain.Role, countries []string, active bool) domain.Identity {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	identity := domain.Identity{
		ID:                id,
		UserID:            userID,
		Role:              role,
		AssignedCountries: countries,
		IsActive:          active,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if identity.AssignedCountries == nil {
		identity.AssignedCountries = []string{}
	}
	require.NoError(t, db.Exec(
		`INSERT INTO admin_identities (id, user_id, role, assigned_countries, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.UserID, identity.Role, identity.AssignedCountries, identity.IsActive, identity.CreatedAt, identity.UpdatedAt,
	).Error)
	return identity
}
