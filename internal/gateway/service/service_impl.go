package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/access"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/audit/masking"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	"github.com/smallbiznis/adminwatch/internal/ratelimit"
	referencedomain "github.com/smallbiznis/adminwatch/internal/reference/domain"
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
	Repo       admindomain.Repository
	Identities admindomain.Service
	Catalog    referencedomain.Catalog
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
	Limiter    *ratelimit.ActionLimiter `optional:"true"`
	Metrics    *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       admindomain.Repository
	identities admindomain.Service
	catalog    referencedomain.Catalog
	authz      authorization.Service
	auditSvc   auditdomain.Service
	limiter    *ratelimit.ActionLimiter
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Gateway {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("gateway.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		identities: p.Identities,
		catalog:    p.Catalog,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}
}

var policyFor = map[domain.Action]struct{ object, action string }{
	domain.ActionSuspend:         {authorization.ObjectAccount, authorization.ActionAccountSuspend},
	domain.ActionUnsuspend:       {authorization.ObjectAccount, authorization.ActionAccountUnsuspend},
	domain.ActionDelete:          {authorization.ObjectAccount, authorization.ActionAccountDelete},
	domain.ActionUpdateRole:      {authorization.ObjectAccount, authorization.ActionAccountUpdateRole},
	domain.ActionAssignCountries: {authorization.ObjectAdminIdentity, authorization.ActionAdminAssignCountries},
}

// Execute runs one privileged action. Every check happens before the
// transaction; inside it the audit entry is written before the mutation.
func (s *Service) Execute(ctx context.Context, cmd domain.Command) (domain.Result, error) {
	result, err := s.execute(ctx, cmd)
	s.metrics.RecordAdminAction(ctx, string(cmd.Action), outcome(result, err))
	if err != nil {
		s.log.Warn("admin action rejected",
			zap.String("actor_id", cmd.ActorID.String()),
			zap.String("action", string(cmd.Action)),
			zap.String("target_user_id", cmd.TargetUserID.String()),
			zap.String("error_type", apperror.Type(err)),
			zap.Error(err),
		)
	}
	return result, err
}

func (s *Service) execute(ctx context.Context, cmd domain.Command) (domain.Result, error) {
	actor, err := s.identities.ActiveIdentity(ctx, cmd.ActorID)
	if err != nil {
		return domain.Result{}, err
	}

	decision, err := s.limiter.Allow(ctx, actor.ID)
	if err != nil {
		return domain.Result{}, err
	}
	if !decision.Allowed {
		return domain.Result{}, domain.ErrActionRateLimited
	}

	policy, ok := policyFor[cmd.Action]
	if !ok {
		return domain.Result{}, domain.ErrInvalidAction
	}
	if err := s.authz.Authorize(ctx, authorization.Actor{AdminID: actor.ID, Role: string(actor.Role)}, policy.object, policy.action); err != nil {
		return domain.Result{}, err
	}

	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	cmd, err = normalize(cmd, actor, known)
	if err != nil {
		return domain.Result{}, err
	}

	target, err := s.repo.FindAccount(ctx, s.db, cmd.TargetUserID)
	if err != nil {
		return domain.Result{}, err
	}
	if target == nil {
		return domain.Result{}, domain.ErrTargetNotFound
	}
	if err := checkScope(*actor, known, *target); err != nil {
		s.metrics.RecordAccessDenied(ctx, apperror.Code(err))
		return domain.Result{}, err
	}

	targetIdentity, err := s.repo.FindIdentityByUserID(ctx, s.db, target.ID)
	if err != nil {
		return domain.Result{}, err
	}

	plan, err := s.plan(cmd, *target, targetIdentity)
	if err != nil {
		return domain.Result{}, err
	}

	var auditID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.auditSvc.Record(ctx, tx, s.auditEntry(actor.ID, cmd, *target, plan))
		if err != nil {
			return err
		}
		auditID = id
		if plan.alreadyInState {
			return nil
		}
		return s.apply(ctx, tx, plan)
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.log.Info("admin action executed",
		zap.String("actor_id", actor.ID.String()),
		zap.String("action", string(cmd.Action)),
		zap.String("target_user_id", target.ID.String()),
		zap.String("audit_id", auditID.String()),
		zap.Bool("already_in_state", plan.alreadyInState),
	)
	return domain.Result{Success: true, AuditID: auditID, AlreadyInState: plan.alreadyInState}, nil
}

func normalize(cmd domain.Command, actor *admindomain.Identity, known []string) (domain.Command, error) {
	if !cmd.Action.Valid() {
		return cmd, domain.ErrInvalidAction
	}
	if cmd.TargetUserID == 0 {
		return cmd, domain.ErrTargetRequired
	}
	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if cmd.Action.RequiresReason() && cmd.Reason == "" {
		return cmd, domain.ErrReasonRequired
	}
	if cmd.TargetUserID == actor.UserID {
		return cmd, domain.ErrSelfAction
	}

	switch cmd.Action {
	case domain.ActionUpdateRole:
		cmd.NewRole = admindomain.AccountRole(strings.TrimSpace(string(cmd.NewRole)))
		if !cmd.NewRole.Valid() {
			return cmd, domain.ErrInvalidRole
		}
		fallthrough
	case domain.ActionAssignCountries:
		cmd.Countries = admindomain.NormalizeCountries(cmd.Countries)
		for _, code := range cmd.Countries {
			if !slices.Contains(known, code) {
				return cmd, fmt.Errorf("%w: %s", domain.ErrInvalidCountry, code)
			}
		}
	}
	return cmd, nil
}

// checkScope applies the country gate to the target account. Accounts whose
// role outranks the actor's are off limits to everyone but super admins.
func checkScope(actor admindomain.Identity, known []string, target admindomain.Account) error {
	if actor.Role == admindomain.RoleSuperAdmin {
		return nil
	}
	if target.Role.Rank() > actor.Role.Rank() {
		return domain.ErrTargetPrivileged
	}
	if !access.CanAccess(actor, known, target.CountryCode) {
		return domain.ErrTargetOutOfScope
	}
	return nil
}

// plan holds the before/after state of one action.
type plan struct {
	action         domain.Action
	before         admindomain.Account
	after          admindomain.Account
	identityBefore *admindomain.Identity
	identityAfter  *admindomain.Identity
	insertIdentity bool
	alreadyInState bool
}

func (s *Service) plan(cmd domain.Command, target admindomain.Account, identity *admindomain.Identity) (plan, error) {
	now := s.clock.Now()
	p := plan{action: cmd.Action, before: target, after: target, identityBefore: identity}
	p.after.UpdatedAt = now

	switch cmd.Action {
	case domain.ActionSuspend:
		if target.Status == admindomain.AccountStatusDeleted {
			return p, domain.ErrTargetDeleted
		}
		p.alreadyInState = target.Status == admindomain.AccountStatusSuspended
		reason := cmd.Reason
		p.after.Status = admindomain.AccountStatusSuspended
		p.after.SuspendedReason = &reason

	case domain.ActionUnsuspend:
		if target.Status == admindomain.AccountStatusDeleted {
			return p, domain.ErrTargetDeleted
		}
		p.alreadyInState = target.Status == admindomain.AccountStatusActive
		p.after.Status = admindomain.AccountStatusActive
		p.after.SuspendedReason = nil

	case domain.ActionDelete:
		p.alreadyInState = target.Status == admindomain.AccountStatusDeleted &&
			(identity == nil || !identity.IsActive)
		p.after.Status = admindomain.AccountStatusDeleted
		if identity != nil && identity.IsActive {
			next := *identity
			next.IsActive = false
			next.UpdatedAt = now
			p.identityAfter = &next
		}

	case domain.ActionUpdateRole:
		if target.Status == admindomain.AccountStatusDeleted {
			return p, domain.ErrTargetDeleted
		}
		p.after.Role = cmd.NewRole
		p.identityAfter, p.insertIdentity = s.identityForRole(cmd, target, identity)
		p.alreadyInState = target.Role == cmd.NewRole && p.identityAfter == nil

	case domain.ActionAssignCountries:
		if identity == nil || !identity.IsActive {
			return p, domain.ErrTargetNotAdmin
		}
		next := *identity
		next.AssignedCountries = nonNil(cmd.Countries)
		next.UpdatedAt = now
		p.alreadyInState = slices.Equal(identity.Countries(), cmd.Countries)
		if !p.alreadyInState {
			p.identityAfter = &next
		}
	}

	if p.alreadyInState {
		p.after = target
		p.identityAfter = nil
	}
	return p, nil
}

// identityForRole returns the identity write an updateRole needs, or nil when
// the current identity already matches.
func (s *Service) identityForRole(cmd domain.Command, target admindomain.Account, identity *admindomain.Identity) (*admindomain.Identity, bool) {
	now := s.clock.Now()
	adminRole, isAdmin := cmd.NewRole.AdminRole()

	if !isAdmin {
		if identity == nil || !identity.IsActive {
			return nil, false
		}
		next := *identity
		next.IsActive = false
		next.UpdatedAt = now
		return &next, false
	}

	if identity == nil {
		return &admindomain.Identity{
			ID:                s.genID.Generate(),
			UserID:            target.ID,
			Role:              adminRole,
			AssignedCountries: nonNil(cmd.Countries),
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}, true
	}

	next := *identity
	next.Role = adminRole
	next.IsActive = true
	if cmd.Countries != nil {
		next.AssignedCountries = cmd.Countries
	}
	if next.Role == identity.Role && next.IsActive == identity.IsActive &&
		slices.Equal(admindomain.NormalizeCountries(next.AssignedCountries), identity.Countries()) {
		return nil, false
	}
	next.UpdatedAt = now
	return &next, false
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, p plan) error {
	if p.action != domain.ActionAssignCountries {
		if err := s.repo.UpdateAccount(ctx, tx, &p.after); err != nil {
			return err
		}
	}
	switch {
	case p.identityAfter == nil:
		return nil
	case p.insertIdentity:
		return s.repo.InsertIdentity(ctx, tx, p.identityAfter)
	default:
		return s.repo.UpdateIdentity(ctx, tx, p.identityAfter)
	}
}

func (s *Service) auditEntry(actorID snowflake.ID, cmd domain.Command, target admindomain.Account, p plan) auditdomain.Entry {
	metadata := map[string]any{
		"reason":           cmd.Reason,
		"already_in_state": p.alreadyInState,
		"before":           accountMetadata(p.before, p.identityBefore),
		"after":            accountMetadata(p.after, pick(p.identityAfter, p.identityBefore)),
		"target_country":   target.CountryCode,
	}
	if cmd.Meta.RequestID != "" {
		metadata["request_id"] = cmd.Meta.RequestID
	}
	if cmd.Meta.IP != "" {
		metadata["ip"] = cmd.Meta.IP
	}
	if cmd.Meta.UserAgent != "" {
		metadata["user_agent"] = cmd.Meta.UserAgent
	}

	return auditdomain.Entry{
		ActorID:     actorID,
		ActionType:  string(cmd.Action),
		TargetType:  auditdomain.TargetAccount,
		TargetID:    target.ID.String(),
		Description: fmt.Sprintf("%s %s", cmd.Action, masking.MaskEmail(target.Email)),
		Metadata:    metadata,
	}
}

func accountMetadata(account admindomain.Account, identity *admindomain.Identity) map[string]any {
	out := map[string]any{
		"status": string(account.Status),
		"role":   string(account.Role),
	}
	if identity != nil {
		out["admin_role"] = string(identity.Role)
		out["admin_active"] = identity.IsActive
		out["assigned_countries"] = identity.Countries()
	}
	return out
}

func pick(primary, fallback *admindomain.Identity) *admindomain.Identity {
	if primary != nil {
		return primary
	}
	return fallback
}

func nonNil(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}

func outcome(result domain.Result, err error) string {
	switch {
	case err == nil && result.AlreadyInState:
		return "already_in_state"
	case err == nil:
		return "success"
	case errors.Is(err, apperror.ErrRateLimited):
		return "rate_limited"
	default:
		return apperror.Type(err)
	}
}
