package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Actor is the freshly loaded identity an authorization decision is made for.
type Actor struct {
	AdminID snowflake.ID
	Role    string
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies through the gorm adapter and seeds the defaults.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return seed(enforcer)
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return seed(enforcer)
}

func seed(enforcer *casbin.SyncedEnforcer) (*casbin.SyncedEnforcer, error) {
	enforcer.EnableAutoBuildRoleLinks(true)
	for _, policy := range defaultPolicies() {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return nil, err
		}
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	if actor.AdminID <= 0 {
		return ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	switch role {
	case RoleSuperAdmin, RoleRegionalAdmin, RoleModerator:
	default:
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "admin:" + actor.AdminID.String()
	if err := s.ensureGrouping(subject, roleSubject(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("admin_id", actor.AdminID.String()),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping binds the subject to its current role, dropping stale bindings
// left behind by a role change.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor Actor, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	if _, err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		ActorID:     actor.AdminID,
		ActionType:  "authorization.denied",
		TargetType:  object,
		TargetID:    action,
		Description: "authorization denied",
		Metadata: map[string]any{
			"role":   actor.Role,
			"object": object,
			"action": action,
		},
	}); err != nil {
		s.log.Warn("failed to audit authorization denial", zap.Error(err))
	}
}
