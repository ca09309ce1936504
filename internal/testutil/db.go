// Package testutil opens in-memory databases carrying the adminwatch schema.
package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/adminwatch/internal/admin/admintest"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS threshold_rules (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		metric_type TEXT NOT NULL,
		threshold_type TEXT NOT NULL,
		warning_value REAL NOT NULL,
		critical_value REAL NOT NULL,
		comparison_period TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		notify_business BOOLEAN NOT NULL DEFAULT FALSE,
		notify_admin BOOLEAN NOT NULL DEFAULT TRUE,
		created_by INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metric_snapshots (
		id INTEGER PRIMARY KEY,
		country_code TEXT NOT NULL,
		metric_type TEXT NOT NULL,
		period TEXT NOT NULL,
		current_value REAL NOT NULL,
		prior_value REAL NOT NULL,
		business_id INTEGER,
		captured_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_metric_snapshots_key
		ON metric_snapshots (country_code, metric_type, period, COALESCE(business_id, 0))`,
	`CREATE TABLE IF NOT EXISTS country_health_statuses (
		country_code TEXT PRIMARY KEY,
		is_struggling BOOLEAN NOT NULL DEFAULT FALSE,
		severity TEXT,
		struggling_since DATETIME,
		last_status_change DATETIME NOT NULL,
		triggering_metrics TEXT NOT NULL DEFAULT '[]',
		triggering_rule_ids TEXT NOT NULL DEFAULT '[]',
		pending_alert TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		admin_id INTEGER PRIMARY KEY,
		email BOOLEAN NOT NULL DEFAULT TRUE,
		push BOOLEAN NOT NULL DEFAULT TRUE,
		in_app BOOLEAN NOT NULL DEFAULT TRUE,
		categories TEXT NOT NULL DEFAULT '{}',
		quiet_hours_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		quiet_start TEXT NOT NULL DEFAULT '22:00',
		quiet_end TEXT NOT NULL DEFAULT '08:00',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		monitored_countries TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deferred_notifications (
		id INTEGER PRIMARY KEY,
		recipient_id INTEGER NOT NULL,
		event TEXT NOT NULL,
		deliver_after DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		released_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		id INTEGER PRIMARY KEY,
		recipient_id INTEGER NOT NULL,
		channel TEXT NOT NULL,
		category TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		sent_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY,
		actor_id INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns a fresh in-memory database named after the test.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	admintest.CreateTables(t, db)
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// CountAudit returns the number of audit rows with the given action type.
func CountAudit(t *testing.T, db *gorm.DB, actionType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM audit_logs WHERE action_type = ?`, actionType).Scan(&count).Error)
	return count
}
