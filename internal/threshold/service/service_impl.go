package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Identities admindomain.Service
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	identities admindomain.Service
	authz      authorization.Service
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("threshold.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		identities: p.Identities,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, actorID snowflake.ID, req domain.CreateRuleRequest) (*domain.Rule, error) {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleManage); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rule := &domain.Rule{
		ID:               s.genID.Generate(),
		Name:             strings.TrimSpace(req.Name),
		MetricType:       req.MetricType,
		ThresholdType:    req.ThresholdType,
		WarningValue:     req.WarningValue,
		CriticalValue:    req.CriticalValue,
		ComparisonPeriod: req.ComparisonPeriod,
		IsActive:         boolOr(req.IsActive, true),
		NotifyBusiness:   req.NotifyBusiness,
		NotifyAdmin:      boolOr(req.NotifyAdmin, true),
		CreatedBy:        actorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := domain.Validate(*rule); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actorID,
			ActionType:  auditdomain.ActionThresholdRuleCreate,
			TargetType:  auditdomain.TargetThresholdRule,
			TargetID:    rule.ID.String(),
			Description: fmt.Sprintf("created threshold rule %q", rule.Name),
			Metadata:    map[string]any{"after": ruleMetadata(rule)},
		}); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, rule)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("threshold rule created", zap.String("rule_id", rule.ID.String()), zap.String("actor_id", actorID.String()))
	return rule, nil
}

func (s *Service) Update(ctx context.Context, actorID snowflake.ID, id snowflake.ID, req domain.UpdateRuleRequest) (*domain.Rule, error) {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleManage); err != nil {
		return nil, err
	}

	var updated *domain.Rule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next := *current
		applyUpdate(&next, req)
		next.UpdatedAt = s.clock.Now()
		if err := domain.Validate(next); err != nil {
			return err
		}

		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actorID,
			ActionType:  auditdomain.ActionThresholdRuleUpdate,
			TargetType:  auditdomain.TargetThresholdRule,
			TargetID:    id.String(),
			Description: fmt.Sprintf("updated threshold rule %q", next.Name),
			Metadata: map[string]any{
				"before": ruleMetadata(current),
				"after":  ruleMetadata(&next),
			},
		}); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Toggle(ctx context.Context, actorID snowflake.ID, id snowflake.ID, active bool) (*domain.Rule, error) {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleManage); err != nil {
		return nil, err
	}

	var updated *domain.Rule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next := *current
		next.IsActive = active
		next.UpdatedAt = s.clock.Now()

		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actorID,
			ActionType:  auditdomain.ActionThresholdRuleToggle,
			TargetType:  auditdomain.TargetThresholdRule,
			TargetID:    id.String(),
			Description: fmt.Sprintf("set threshold rule %q active=%t", next.Name, active),
			Metadata: map[string]any{
				"before": map[string]any{"is_active": current.IsActive},
				"after":  map[string]any{"is_active": active},
			},
		}); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actorID snowflake.ID, id snowflake.ID) error {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleManage); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		refs, err := s.repo.StrugglingRuleRefs(ctx, tx)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if ref == id.String() {
				return domain.ErrRuleInUse
			}
		}

		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actorID,
			ActionType:  auditdomain.ActionThresholdRuleDelete,
			TargetType:  auditdomain.TargetThresholdRule,
			TargetID:    id.String(),
			Description: fmt.Sprintf("deleted threshold rule %q", current.Name),
			Metadata:    map[string]any{"before": ruleMetadata(current)},
		}); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) Get(ctx context.Context, actorID snowflake.ID, id snowflake.ID) (*domain.Rule, error) {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleView); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, actorID snowflake.ID, req domain.ListRulesRequest) ([]domain.Rule, error) {
	if err := s.authorize(ctx, actorID, authorization.ActionThresholdRuleView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, domain.ListFilter{MetricType: req.MetricType, ActiveOnly: req.ActiveOnly})
}

func (s *Service) ActiveRules(ctx context.Context) ([]domain.Rule, error) {
	return s.repo.List(ctx, s.db, domain.ListFilter{ActiveOnly: true})
}

// authorize reloads the actor so a role change takes effect on the next call.
func (s *Service) authorize(ctx context.Context, actorID snowflake.ID, action string) error {
	identity, err := s.identities.ActiveIdentity(ctx, actorID)
	if err != nil {
		return err
	}
	return s.authz.Authorize(ctx, authorization.Actor{
		AdminID: identity.ID,
		Role:    string(identity.Role),
	}, authorization.ObjectThresholdRule, action)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	rule, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

func applyUpdate(rule *domain.Rule, req domain.UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.MetricType != nil {
		rule.MetricType = *req.MetricType
	}
	if req.ThresholdType != nil {
		rule.ThresholdType = *req.ThresholdType
	}
	if req.WarningValue != nil {
		rule.WarningValue = *req.WarningValue
	}
	if req.CriticalValue != nil {
		rule.CriticalValue = *req.CriticalValue
	}
	if req.ComparisonPeriod != nil {
		rule.ComparisonPeriod = *req.ComparisonPeriod
	}
	if req.NotifyBusiness != nil {
		rule.NotifyBusiness = *req.NotifyBusiness
	}
	if req.NotifyAdmin != nil {
		rule.NotifyAdmin = *req.NotifyAdmin
	}
}

func ruleMetadata(rule *domain.Rule) map[string]any {
	return map[string]any{
		"name":              rule.Name,
		"metric_type":       string(rule.MetricType),
		"threshold_type":    string(rule.ThresholdType),
		"warning_value":     rule.WarningValue,
		"critical_value":    rule.CriticalValue,
		"comparison_period": string(rule.ComparisonPeriod),
		"is_active":         rule.IsActive,
		"notify_business":   rule.NotifyBusiness,
		"notify_admin":      rule.NotifyAdmin,
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
