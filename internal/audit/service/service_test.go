package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/audit/repository"
	"github.com/smallbiznis/adminwatch/internal/clock"
	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
	"github.com/smallbiznis/adminwatch/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (*gorm.DB, *clock.FakeClock, auditdomain.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_id INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return db, clk, svc
}

func TestRecordEnrichesMetadataFromContext(t *testing.T) {
	db, _, svc := setupAuditService(t)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithClient(ctx, "10.0.0.1", "curl/8")

	id, err := svc.Record(ctx, db, auditdomain.Entry{
		ActorID:     1,
		ActionType:  auditdomain.ActionSuspend,
		TargetType:  auditdomain.TargetAccount,
		TargetID:    "99",
		Description: "suspended account",
		Metadata:    map[string]any{"reason": "abuse"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored, "id = ?", id).Error)
	assert.Equal(t, "abuse", stored.Metadata["reason"])
	assert.Equal(t, "req-7", stored.Metadata["request_id"])
	assert.Equal(t, "10.0.0.1", stored.Metadata["ip_address"])
	assert.Equal(t, "curl/8", stored.Metadata["user_agent"])
}

func TestRecordInsideRolledBackTransactionLeavesNoEntry(t *testing.T) {
	db, _, svc := setupAuditService(t)

	boom := errors.New("mutation failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Record(context.Background(), tx, auditdomain.Entry{
			ActorID:    1,
			ActionType: auditdomain.ActionDelete,
			TargetType: auditdomain.TargetAccount,
			TargetID:   "5",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordRejectsMissingAction(t *testing.T) {
	db, _, svc := setupAuditService(t)
	_, err := svc.Record(context.Background(), db, auditdomain.Entry{ActorID: 1})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	db, clk, svc := setupAuditService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, db, auditdomain.Entry{
			ActorID:    1,
			ActionType: auditdomain.ActionSuspend,
			TargetType: auditdomain.TargetAccount,
			TargetID:   "42",
		})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
}

func TestListRejectsInvertedRange(t *testing.T) {
	_, _, svc := setupAuditService(t)
	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
