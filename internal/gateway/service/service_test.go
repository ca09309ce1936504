package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
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
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/gateway/domain"
	"github.com/smallbiznis/adminwatch/internal/ratelimit"
	"github.com/smallbiznis/adminwatch/internal/reference"
	"github.com/smallbiznis/adminwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	superAdminID snowflake.ID = 1
	beninAdminID snowflake.ID = 2
	moderatorID  snowflake.ID = 3

	superUserID     snowflake.ID = 101
	beninUserID     snowflake.ID = 102
	moderatorUserID snowflake.ID = 103

	customerID  snowflake.ID = 500
	senegalID   snowflake.ID = 501
	regionalID  snowflake.ID = 600
	regionalIID snowflake.ID = 6
)

type options struct {
	audit   auditdomain.Service
	limiter *ratelimit.ActionLimiter
}

func setup(t *testing.T, opts options) (*gorm.DB, domain.Gateway) {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	admintest.InsertIdentity(t, db, superAdminID, superUserID, admindomain.RoleSuperAdmin, nil, true)
	admintest.InsertIdentity(t, db, beninAdminID, beninUserID, admindomain.RoleRegionalAdmin, []string{"BJ"}, true)
	admintest.InsertIdentity(t, db, moderatorID, moderatorUserID, admindomain.RoleModerator, []string{"BJ"}, true)
	admintest.InsertAccount(t, db, superUserID, "", admindomain.AccountStatusActive, admindomain.AccountRoleSuperAdmin)

	admintest.InsertAccount(t, db, customerID, "BJ", admindomain.AccountStatusActive, admindomain.AccountRoleUser)
	admintest.InsertAccount(t, db, senegalID, "SN", admindomain.AccountStatusActive, admindomain.AccountRoleBusiness)
	admintest.InsertAccount(t, db, regionalID, "BJ", admindomain.AccountStatusActive, admindomain.AccountRoleRegionalAdmin)
	admintest.InsertIdentity(t, db, regionalIID, regionalID, admindomain.RoleRegionalAdmin, []string{"BJ"}, true)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	catalog, err := reference.NewCatalog(reference.CatalogParams{Repo: reference.NewRepository(db), Log: zap.NewNop()})
	require.NoError(t, err)

	auditSvc := opts.audit
	if auditSvc == nil {
		auditSvc = auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Repo:  auditrepository.Provide(),
			Clock: clk,
		})
	}

	repo := adminrepository.Provide()
	gw := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repo,
		Identities: adminservice.New(adminservice.Params{DB: db, Log: zap.NewNop(), Repo: repo}),
		Catalog:    catalog,
		Authz:      authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc:   auditSvc,
		Limiter:    opts.limiter,
	})
	return db, gw
}

func account(t *testing.T, db *gorm.DB, id snowflake.ID) admindomain.Account {
	t.Helper()
	found, err := adminrepository.Provide().FindAccount(context.Background(), db, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	return *found
}

func identityOf(t *testing.T, db *gorm.DB, userID snowflake.ID) *admindomain.Identity {
	t.Helper()
	found, err := adminrepository.Provide().FindIdentityByUserID(context.Background(), db, userID)
	require.NoError(t, err)
	return found
}

func TestSuspendRequiresReason(t *testing.T) {
	db, gw := setup(t, options{})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "  "})
	require.ErrorIs(t, err, apperror.ErrValidationFailed)
	assert.ErrorIs(t, err, domain.ErrReasonRequired)
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionSuspend))
	assert.Equal(t, admindomain.AccountStatusActive, account(t, db, customerID).Status)

	result, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "abuse"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyInState)
	assert.NotZero(t, result.AuditID)
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionSuspend))

	suspended := account(t, db, customerID)
	assert.Equal(t, admindomain.AccountStatusSuspended, suspended.Status)
	require.NotNil(t, suspended.SuspendedReason)
	assert.Equal(t, "abuse", *suspended.SuspendedReason)
}

func TestUnsuspendActiveAccountIsIdempotent(t *testing.T) {
	db, gw := setup(t, options{})

	result, err := gw.Execute(context.Background(), domain.Command{ActorID: beninAdminID, Action: domain.ActionUnsuspend, TargetUserID: customerID})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.AlreadyInState)
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionUnsuspend))
	assert.Equal(t, admindomain.AccountStatusActive, account(t, db, customerID).Status)
}

func TestSuspendThenUnsuspend(t *testing.T) {
	db, gw := setup(t, options{})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: moderatorID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "spam"})
	require.NoError(t, err)

	again, err := gw.Execute(ctx, domain.Command{ActorID: moderatorID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyInState)

	_, err = gw.Execute(ctx, domain.Command{ActorID: moderatorID, Action: domain.ActionUnsuspend, TargetUserID: customerID})
	require.NoError(t, err)
	restored := account(t, db, customerID)
	assert.Equal(t, admindomain.AccountStatusActive, restored.Status)
	assert.Nil(t, restored.SuspendedReason)
}

func TestCountryGateRejectsOutOfScopeTarget(t *testing.T) {
	db, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: beninAdminID, Action: domain.ActionSuspend, TargetUserID: senegalID, Reason: "fraud"})
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.ErrorIs(t, err, domain.ErrTargetOutOfScope)
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionSuspend))
	assert.Equal(t, admindomain.AccountStatusActive, account(t, db, senegalID).Status)
}

func TestNonSuperAdminCannotTouchSuperAdmin(t *testing.T) {
	_, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: beninAdminID, Action: domain.ActionSuspend, TargetUserID: superUserID, Reason: "test"})
	assert.ErrorIs(t, err, domain.ErrTargetPrivileged)
}

func TestModeratorCannotTouchRegionalAdmin(t *testing.T) {
	db, gw := setup(t, options{})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: moderatorID, Action: domain.ActionSuspend, TargetUserID: regionalID, Reason: "abuse"})
	require.ErrorIs(t, err, domain.ErrTargetPrivileged)
	assert.Equal(t, admindomain.AccountStatusActive, account(t, db, regionalID).Status)
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionSuspend))

	_, err = gw.Execute(ctx, domain.Command{ActorID: moderatorID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "abuse"})
	require.NoError(t, err)
	assert.Equal(t, admindomain.AccountStatusSuspended, account(t, db, customerID).Status)
}

func TestPolicyDeniesModeratorDelete(t *testing.T) {
	db, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: moderatorID, Action: domain.ActionDelete, TargetUserID: customerID, Reason: "fraud"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	assert.Zero(t, testutil.CountAudit(t, db, auditdomain.ActionDelete))
}

func TestMissingTarget(t *testing.T) {
	_, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: superAdminID, Action: domain.ActionSuspend, TargetUserID: 9999, Reason: "fraud"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSelfActionRefused(t *testing.T) {
	_, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: superAdminID, Action: domain.ActionSuspend, TargetUserID: superUserID, Reason: "oops"})
	assert.ErrorIs(t, err, domain.ErrSelfAction)
}

func TestInactiveActorIsRejected(t *testing.T) {
	db, gw := setup(t, options{})
	require.NoError(t, db.Exec(`UPDATE admin_identities SET is_active = FALSE WHERE id = ?`, beninAdminID).Error)

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: beninAdminID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "abuse"})
	assert.ErrorIs(t, err, admindomain.ErrIdentityInactive)
}

func TestDeleteDeactivatesAdminIdentity(t *testing.T) {
	db, gw := setup(t, options{})
	ctx := context.Background()

	result, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionDelete, TargetUserID: regionalID, Reason: "left company"})
	require.NoError(t, err)
	assert.False(t, result.AlreadyInState)
	assert.Equal(t, admindomain.AccountStatusDeleted, account(t, db, regionalID).Status)

	identity := identityOf(t, db, regionalID)
	require.NotNil(t, identity)
	assert.False(t, identity.IsActive)

	again, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionDelete, TargetUserID: regionalID, Reason: "left company"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyInState)

	_, err = gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionUnsuspend, TargetUserID: regionalID})
	assert.ErrorIs(t, err, domain.ErrTargetDeleted)
}

func TestUpdateRoleCreatesAdminIdentity(t *testing.T) {
	db, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{
		ActorID:      superAdminID,
		Action:       domain.ActionUpdateRole,
		TargetUserID: customerID,
		Reason:       "promoted",
		NewRole:      admindomain.AccountRoleRegionalAdmin,
		Countries:    []string{"sn", "BJ"},
	})
	require.NoError(t, err)
	assert.Equal(t, admindomain.AccountRoleRegionalAdmin, account(t, db, customerID).Role)

	identity := identityOf(t, db, customerID)
	require.NotNil(t, identity)
	assert.True(t, identity.IsActive)
	assert.Equal(t, admindomain.RoleRegionalAdmin, identity.Role)
	assert.Equal(t, []string{"BJ", "SN"}, identity.Countries())
}

func TestUpdateRoleToUserDeactivatesIdentity(t *testing.T) {
	db, gw := setup(t, options{})

	_, err := gw.Execute(context.Background(), domain.Command{
		ActorID:      superAdminID,
		Action:       domain.ActionUpdateRole,
		TargetUserID: regionalID,
		Reason:       "demoted",
		NewRole:      admindomain.AccountRoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, admindomain.AccountRoleUser, account(t, db, regionalID).Role)
	assert.False(t, identityOf(t, db, regionalID).IsActive)
}

func TestUpdateRoleValidation(t *testing.T) {
	_, gw := setup(t, options{})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionUpdateRole, TargetUserID: customerID, Reason: "x", NewRole: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = gw.Execute(ctx, domain.Command{ActorID: beninAdminID, Action: domain.ActionUpdateRole, TargetUserID: customerID, Reason: "x", NewRole: admindomain.AccountRoleModerator})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestAssignCountries(t *testing.T) {
	db, gw := setup(t, options{})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionAssignCountries, TargetUserID: regionalID, Reason: "expansion", Countries: []string{"ZZ"}})
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)

	_, err = gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionAssignCountries, TargetUserID: customerID, Reason: "expansion", Countries: []string{"SN"}})
	assert.ErrorIs(t, err, domain.ErrTargetNotAdmin)

	result, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionAssignCountries, TargetUserID: regionalID, Reason: "expansion", Countries: []string{"sn", "bj"}})
	require.NoError(t, err)
	assert.False(t, result.AlreadyInState)
	assert.Equal(t, []string{"BJ", "SN"}, identityOf(t, db, regionalID).Countries())
	assert.EqualValues(t, 1, testutil.CountAudit(t, db, auditdomain.ActionAssignCountries))

	same, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionAssignCountries, TargetUserID: regionalID, Reason: "expansion", Countries: []string{"SN", "BJ"}})
	require.NoError(t, err)
	assert.True(t, same.AlreadyInState)
}

type failingAudit struct {
	mock.Mock
}

func (m *failingAudit) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) (snowflake.ID, error) {
	args := m.Called(ctx, tx, entry)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *failingAudit) AuditLog(ctx context.Context, entry auditdomain.Entry) (snowflake.ID, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *failingAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListAuditLogResponse), args.Error(1)
}

func TestAuditFailureAbortsMutation(t *testing.T) {
	audit := &failingAudit{}
	audit.On("Record", mock.Anything, mock.Anything, mock.MatchedBy(func(entry auditdomain.Entry) bool {
		return entry.ActionType == auditdomain.ActionSuspend && entry.Description == "suspend u****@example.com"
	})).Return(snowflake.ID(0), errors.New("disk full")).Once()
	db, gw := setup(t, options{audit: audit})

	_, err := gw.Execute(context.Background(), domain.Command{ActorID: superAdminID, Action: domain.ActionSuspend, TargetUserID: customerID, Reason: "abuse"})
	require.Error(t, err)
	assert.Equal(t, admindomain.AccountStatusActive, account(t, db, customerID).Status)
	audit.AssertExpectations(t)
}

func TestActionRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := ratelimit.NewActionLimiter(config.Config{RateLimit: config.RateLimitConfig{ActionRate: 0.01, ActionBurst: 1}}, client)
	require.NotNil(t, limiter)

	_, gw := setup(t, options{limiter: limiter})
	ctx := context.Background()

	_, err := gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionUnsuspend, TargetUserID: customerID})
	require.NoError(t, err)

	_, err = gw.Execute(ctx, domain.Command{ActorID: superAdminID, Action: domain.ActionUnsuspend, TargetUserID: customerID})
	assert.ErrorIs(t, err, apperror.ErrRateLimited)
}
