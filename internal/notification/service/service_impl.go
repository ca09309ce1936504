package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/access"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	referencedomain "github.com/smallbiznis/adminwatch/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	dispatchConcurrency = 8
	releaseBatchSize    = 200
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Identities admindomain.Service
	Catalog    referencedomain.Catalog
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	identities admindomain.Service
	catalog    referencedomain.Catalog
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("notification.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		identities: p.Identities,
		catalog:    p.Catalog,
		auditSvc:   p.AuditSvc,
	}
}

// GetPreferences returns the owner's preferences, creating defaults on first read.
func (s *Service) GetPreferences(ctx context.Context, actorID, adminID snowflake.ID) (*domain.Preference, error) {
	if err := s.checkOwner(ctx, actorID, adminID); err != nil {
		return nil, err
	}
	pref, err := s.repo.FindPreference(ctx, s.db, adminID)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		return pref, nil
	}

	defaults := domain.DefaultPreference(adminID)
	defaults.Version = 1
	defaults.UpdatedAt = s.clock.Now()
	if err := s.repo.InsertPreference(ctx, s.db, &defaults); err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		// Lost a first-read race; the other insert wins.
		return s.repo.FindPreference(ctx, s.db, adminID)
	}
	return &defaults, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, actorID, adminID snowflake.ID, req domain.UpdatePreferenceRequest) (*domain.Preference, error) {
	if req.Version <= 0 {
		return nil, domain.ErrVersionRequired
	}
	current, err := s.GetPreferences(ctx, actorID, adminID)
	if err != nil {
		return nil, err
	}
	if current.Version != req.Version {
		return nil, domain.ErrVersionConflict
	}

	next, err := applyPreferenceUpdate(*current, req)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actorID,
			ActionType:  auditdomain.ActionPreferenceUpdate,
			TargetType:  auditdomain.TargetNotificationPreference,
			TargetID:    adminID.String(),
			Description: "updated notification preferences",
			Metadata: map[string]any{
				"before": preferenceMetadata(*current),
				"after":  preferenceMetadata(next),
			},
		}); err != nil {
			return err
		}
		return s.repo.UpdatePreference(ctx, tx, &next, current.Version)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) checkOwner(ctx context.Context, actorID, adminID snowflake.ID) error {
	if actorID != adminID {
		return domain.ErrNotOwner
	}
	_, err := s.identities.ActiveIdentity(ctx, actorID)
	return err
}

func applyPreferenceUpdate(pref domain.Preference, req domain.UpdatePreferenceRequest) (domain.Preference, error) {
	if req.Email != nil {
		pref.Email = *req.Email
	}
	if req.Push != nil {
		pref.Push = *req.Push
	}
	if req.InApp != nil {
		pref.InApp = *req.InApp
	}
	if req.Categories != nil {
		categories := make(map[string]bool, len(pref.Categories)+len(req.Categories))
		for key, value := range pref.Categories {
			categories[key] = value
		}
		for key, value := range req.Categories {
			if !domain.Category(key).Valid() {
				return pref, domain.ErrInvalidCategory
			}
			categories[key] = value
		}
		pref.Categories = categories
	}
	if req.QuietHoursEnabled != nil {
		pref.QuietHoursEnabled = *req.QuietHoursEnabled
	}
	if req.QuietStart != nil {
		pref.QuietStart = strings.TrimSpace(*req.QuietStart)
	}
	if req.QuietEnd != nil {
		pref.QuietEnd = strings.TrimSpace(*req.QuietEnd)
	}
	if _, err := domain.ParseClock(pref.QuietStart); err != nil {
		return pref, err
	}
	if _, err := domain.ParseClock(pref.QuietEnd); err != nil {
		return pref, err
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if tz == "" {
			tz = domain.DefaultTimezone
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return pref, domain.ErrInvalidTimezone
		}
		pref.Timezone = tz
	}
	switch {
	case req.ClearMonitored:
		pref.MonitoredCountries = nil
	case req.MonitoredCountries != nil:
		countries := admindomain.NormalizeCountries(*req.MonitoredCountries)
		for _, code := range countries {
			if len(code) != 2 {
				return pref, domain.ErrInvalidCountry
			}
		}
		if countries == nil {
			countries = []string{}
		}
		pref.MonitoredCountries = countries
	}
	return pref, nil
}

func preferenceMetadata(pref domain.Preference) map[string]any {
	return map[string]any{
		"email":               pref.Email,
		"push":                pref.Push,
		"in_app":              pref.InApp,
		"categories":          pref.Categories,
		"quiet_hours_enabled": pref.QuietHoursEnabled,
		"quiet_start":         pref.QuietStart,
		"quiet_end":           pref.QuietEnd,
		"timezone":            pref.Timezone,
		"monitored_countries": pref.MonitoredCountries,
		"version":             pref.Version,
	}
}

func (s *Service) Dispatch(ctx context.Context, event domain.Event) (domain.DispatchSummary, error) {
	if !event.Category.Valid() {
		return domain.DispatchSummary{}, domain.ErrInvalidEvent
	}
	event.CountryCode = strings.ToUpper(strings.TrimSpace(event.CountryCode))
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}

	recipients, err := s.recipients(ctx, event)
	if err != nil {
		return domain.DispatchSummary{}, err
	}
	now := s.clock.Now()

	var (
		mu      sync.Mutex
		summary = domain.DispatchSummary{Recipients: len(recipients)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchConcurrency)
	for _, recipientID := range recipients {
		g.Go(func() error {
			outcome, err := s.routeOne(gctx, recipientID, event, now)
			if err != nil {
				return fmt.Errorf("route to %s: %w", recipientID, err)
			}
			mu.Lock()
			outcome.addTo(&summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	s.log.Info("notification dispatched",
		zap.String("event_id", event.ID),
		zap.String("category", string(event.Category)),
		zap.String("country_code", event.CountryCode),
		zap.Int("recipients", summary.Recipients),
		zap.Int("delivered", summary.Delivered),
		zap.Int("deferred", summary.Deferred),
		zap.Int("dropped", summary.Dropped),
	)
	return summary, nil
}

// recipients resolves explicit recipients or every active admin whose scope
// covers the event country.
func (s *Service) recipients(ctx context.Context, event domain.Event) ([]snowflake.ID, error) {
	if len(event.RecipientIDs) > 0 {
		return uniqueIDs(event.RecipientIDs), nil
	}
	identities, err := s.identities.ListActiveIdentities(ctx)
	if err != nil {
		return nil, err
	}
	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return nil, err
	}
	var ids []snowflake.ID
	for _, identity := range identities {
		if access.CanAccess(identity, known, event.CountryCode) {
			ids = append(ids, identity.ID)
		}
	}
	return ids, nil
}

type routeOutcome int

const (
	outcomeDropped routeOutcome = iota
	outcomeDelivered
	outcomeDeferred
)

func (o routeOutcome) addTo(summary *domain.DispatchSummary) {
	switch o {
	case outcomeDelivered:
		summary.Delivered++
	case outcomeDeferred:
		summary.Deferred++
	default:
		summary.Dropped++
	}
}

func (s *Service) routeOne(ctx context.Context, recipientID snowflake.ID, event domain.Event, now time.Time) (routeOutcome, error) {
	pref, err := s.preferenceFor(ctx, recipientID)
	if err != nil {
		return outcomeDropped, err
	}
	decision := domain.Route(event, pref, now)

	switch {
	case !decision.Deliver:
		obsmetrics.Evaluation().IncDecision(obsmetrics.DecisionSuppressed, string(event.Category))
		s.log.Debug("notification dropped",
			zap.String("recipient_id", recipientID.String()),
			zap.String("event_id", event.ID),
			zap.String("reason", decision.Reason),
		)
		return outcomeDropped, nil
	case decision.DeliverNow:
		obsmetrics.Evaluation().IncDecision(obsmetrics.DecisionDeliverNow, string(event.Category))
		return outcomeDelivered, s.repo.InsertDeliveries(ctx, s.db, s.deliveries(recipientID, event, decision.Channels, now))
	default:
		obsmetrics.Evaluation().IncDecision(obsmetrics.DecisionDeferred, string(event.Category))
		return outcomeDeferred, s.repo.InsertDeferred(ctx, s.db, &domain.Deferred{
			ID:           s.genID.Generate(),
			RecipientID:  recipientID,
			Event:        datatypesEvent(event),
			DeliverAfter: *decision.DeferredUntil,
			Status:       domain.DeferredPending,
			CreatedAt:    now,
		})
	}
}

// preferenceFor reads stored preferences without creating them.
func (s *Service) preferenceFor(ctx context.Context, recipientID snowflake.ID) (domain.Preference, error) {
	pref, err := s.repo.FindPreference(ctx, s.db, recipientID)
	if err != nil {
		return domain.Preference{}, err
	}
	if pref == nil {
		return domain.DefaultPreference(recipientID), nil
	}
	return *pref, nil
}

func (s *Service) deliveries(recipientID snowflake.ID, event domain.Event, channels []domain.Channel, now time.Time) []domain.Delivery {
	payload := eventPayload(event)
	out := make([]domain.Delivery, 0, len(channels))
	for _, channel := range channels {
		out = append(out, domain.Delivery{
			ID:          s.genID.Generate(),
			RecipientID: recipientID,
			Channel:     channel,
			Category:    event.Category,
			Payload:     payload,
			Status:      domain.DeliveryPending,
			CreatedAt:   now,
		})
	}
	return out
}

func (s *Service) ReleaseDue(ctx context.Context, now time.Time) (domain.DispatchSummary, error) {
	due, err := s.repo.ListDueDeferred(ctx, s.db, now, releaseBatchSize)
	if err != nil {
		return domain.DispatchSummary{}, err
	}

	summary := domain.DispatchSummary{Recipients: len(due)}
	var errs []error
	for _, item := range due {
		outcome, err := s.release(ctx, item, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", item.ID, err))
			continue
		}
		outcome.addTo(&summary)
	}
	return summary, errors.Join(errs...)
}

func (s *Service) release(ctx context.Context, item domain.Deferred, now time.Time) (routeOutcome, error) {
	pref, err := s.preferenceFor(ctx, item.RecipientID)
	if err != nil {
		return outcomeDropped, err
	}
	event := item.Event.Data()
	decision := domain.Route(event, pref, now)

	switch {
	case !decision.Deliver:
		return outcomeDropped, s.repo.MarkDeferred(ctx, s.db, item.ID, domain.DeferredDropped, now)
	case !decision.DeliverNow:
		return outcomeDeferred, s.repo.RescheduleDeferred(ctx, s.db, item.ID, *decision.DeferredUntil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.MarkDeferred(ctx, tx, item.ID, domain.DeferredReleased, now); err != nil {
			return err
		}
		return s.repo.InsertDeliveries(ctx, tx, s.deliveries(item.RecipientID, event, decision.Channels, now))
	})
	if err != nil {
		return outcomeDropped, err
	}
	obsmetrics.Evaluation().IncDecision(obsmetrics.DecisionDeliverNow, string(event.Category))
	return outcomeDelivered, nil
}

func uniqueIDs(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
