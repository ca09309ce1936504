package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/admin/admintest"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	adminrepository "github.com/smallbiznis/adminwatch/internal/admin/repository"
	adminservice "github.com/smallbiznis/adminwatch/internal/admin/service"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	auditrepository "github.com/smallbiznis/adminwatch/internal/audit/repository"
	auditservice "github.com/smallbiznis/adminwatch/internal/audit/service"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/clock"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"github.com/smallbiznis/adminwatch/internal/testutil"
	"github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"github.com/smallbiznis/adminwatch/internal/threshold/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	superAdminID    snowflake.ID = 1
	regionalAdminID snowflake.ID = 2
)

func setup(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	admintest.InsertIdentity(t, db, superAdminID, 101, admindomain.RoleSuperAdmin, nil, true)
	admintest.InsertIdentity(t, db, regionalAdminID, 102, admindomain.RoleRegionalAdmin, []string{"BJ"}, true)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		Identities: adminservice.New(adminservice.Params{DB: db, Log: zap.NewNop(), Repo: adminrepository.Provide()}),
		Authz:      authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc:   auditSvc,
	})
	return db, svc
}

func validRequest() domain.CreateRuleRequest {
	return domain.CreateRuleRequest{
		Name:             "Revenue drop",
		MetricType:       snapshotdomain.MetricRevenue,
		ThresholdType:    domain.ThresholdPercentageDrop,
		WarningValue:     10,
		CriticalValue:    25,
		ComparisonPeriod: snapshotdomain.PeriodWeek,
	}
}

func countRules(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM threshold_rules`).Scan(&count).Error)
	return count
}

func TestCreateRuleIsAudited(t *testing.T) {
	db, svc := setup(t)

	rule, err := svc.Create(context.Background(), superAdminID, validRequest())
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.True(t, rule.NotifyAdmin)
	assert.Equal(t, superAdminID, rule.CreatedBy)

	stored, err := svc.Get(context.Background(), superAdminID, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue drop", stored.Name)
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleCreate))
}

func TestCreateRejectsInvertedThresholdsBeforePersistence(t *testing.T) {
	db, svc := setup(t)
	req := validRequest()
	req.WarningValue = 25
	req.CriticalValue = 10

	_, err := svc.Create(context.Background(), superAdminID, req)
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)
	assert.Zero(t, countRules(t, db))
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleCreate))
}

func TestRuleManagementIsSuperAdminOnly(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, regionalAdminID, validRequest())
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Zero(t, countRules(t, db))

	rule, err := svc.Create(ctx, superAdminID, validRequest())
	require.NoError(t, err)

	rules, err := svc.List(ctx, regionalAdminID, domain.ListRulesRequest{})
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	_, err = svc.Toggle(ctx, regionalAdminID, rule.ID, false)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestDemotedAdminLosesAccessImmediately(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, superAdminID, validRequest())
	require.NoError(t, err)

	require.NoError(t, db.Exec(`UPDATE admin_identities SET role = ? WHERE id = ?`, admindomain.RoleModerator, superAdminID).Error)
	_, err = svc.Toggle(ctx, superAdminID, rule.ID, false)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestUpdateValidatesMergedRule(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, superAdminID, validRequest())
	require.NoError(t, err)

	warning := 30.0
	_, err = svc.Update(ctx, superAdminID, rule.ID, domain.UpdateRuleRequest{WarningValue: &warning})
	assert.ErrorIs(t, err, domain.ErrCriticalBelowWarning)
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleUpdate))

	critical := 40.0
	updated, err := svc.Update(ctx, superAdminID, rule.ID, domain.UpdateRuleRequest{WarningValue: &warning, CriticalValue: &critical})
	require.NoError(t, err)
	assert.Equal(t, 30.0, updated.WarningValue)
	assert.Equal(t, 40.0, updated.CriticalValue)
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleUpdate))
}

func TestToggleAndActiveRules(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, superAdminID, validRequest())
	require.NoError(t, err)

	active, err := svc.ActiveRules(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	toggled, err := svc.Toggle(ctx, superAdminID, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	active, err = svc.ActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteRefusedWhileStrugglingStatusReferencesRule(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, superAdminID, validRequest())
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		`INSERT INTO country_health_statuses (country_code, is_struggling, severity, struggling_since, last_status_change, triggering_metrics, triggering_rule_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"CI", true, "warning", time.Now(), time.Now(), `["revenue"]`, `["`+rule.ID.String()+`"]`,
	).Error)

	err = svc.Delete(ctx, superAdminID, rule.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.EqualValues(t, 1, countRules(t, db))
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleDelete))

	require.NoError(t, db.Exec(`UPDATE country_health_statuses SET is_struggling = ?, triggering_rule_ids = '[]'`, false).Error)
	require.NoError(t, svc.Delete(ctx, superAdminID, rule.ID))
	assert.Zero(t, countRules(t, db))
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionThresholdRuleDelete))

	_, err = svc.Get(ctx, superAdminID, rule.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
