package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/health/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	"github.com/smallbiznis/adminwatch/internal/ratelimit"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockKeyPrefix  = "adminwatch:health:"
	defaultLockTTL = 30 * time.Second
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Locker *ratelimit.Locker `optional:"true"`
	Cfg    config.Config     `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	locker  *ratelimit.Locker
	lockTTL time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(p Params) domain.Service {
	lockTTL := p.Cfg.Evaluation.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("health.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		locker:  p.Locker,
		lockTTL: lockTTL,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) Apply(ctx context.Context, countryCode string, verdicts []thresholddomain.Verdict) (domain.ApplyResult, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	local := s.countryLock(countryCode)
	local.Lock()
	defer local.Unlock()

	if s.locker == nil {
		return s.apply(ctx, countryCode, verdicts)
	}

	var result domain.ApplyResult
	err := s.locker.WithLock(ctx, lockKeyPrefix+countryCode, s.lockTTL, func(ctx context.Context) error {
		var err error
		result, err = s.apply(ctx, countryCode, verdicts)
		return err
	})
	if errors.Is(err, ratelimit.ErrLockNotAcquired) {
		s.log.Info("health cycle skipped, country locked elsewhere", zap.String("country_code", countryCode))
		return domain.ApplyResult{Stale: true}, nil
	}
	return result, err
}

func (s *Service) apply(ctx context.Context, countryCode string, verdicts []thresholddomain.Verdict) (domain.ApplyResult, error) {
	prev, err := s.Get(ctx, countryCode)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	next, event := domain.Decide(prev, verdicts, now)
	if event == nil && next.SameAs(prev) {
		return domain.ApplyResult{Status: prev, PendingAlert: prev.PendingAlert}, nil
	}

	var expected *time.Time
	if prev.Persisted() {
		expected = &prev.LastStatusChange
	}
	if err := s.repo.CompareAndSet(ctx, s.db, next, expected); err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			obsmetrics.Evaluation().IncCASConflict()
			s.log.Warn("stale health cycle discarded", zap.String("country_code", countryCode))
			return domain.ApplyResult{Status: prev, Stale: true}, nil
		}
		return domain.ApplyResult{}, err
	}

	if event != nil {
		obsmetrics.Evaluation().IncHealthTransition(string(event.From), string(event.To))
		s.log.Info("country health transition",
			zap.String("country_code", countryCode),
			zap.String("from", string(event.From)),
			zap.String("to", string(event.To)),
			zap.Strings("triggering_metrics", event.TriggeringMetrics),
		)
	}
	return domain.ApplyResult{Status: next, Event: event, PendingAlert: next.PendingAlert, Written: true}, nil
}

func (s *Service) ResolveAlert(ctx context.Context, status domain.Status) error {
	if status.PendingAlert == nil || !status.Persisted() {
		return nil
	}
	return s.repo.ClearPendingAlert(ctx, s.db, status.CountryCode, status.LastStatusChange)
}

func (s *Service) Get(ctx context.Context, countryCode string) (domain.Status, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	status, err := s.repo.Find(ctx, s.db, countryCode)
	if err != nil {
		return domain.Status{}, err
	}
	if status == nil {
		return domain.Status{CountryCode: countryCode, State: domain.StateHealthy}, nil
	}
	return *status, nil
}

// ListStruggling returns struggling statuses restricted to countries.
func (s *Service) ListStruggling(ctx context.Context, countries []string) ([]domain.Status, error) {
	statuses, err := s.repo.ListStruggling(ctx, s.db)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(countries))
	for _, code := range countries {
		allowed[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	filtered := make([]domain.Status, 0, len(statuses))
	for _, status := range statuses {
		if _, ok := allowed[status.CountryCode]; ok {
			filtered = append(filtered, status)
		}
	}
	domain.SortStruggling(filtered)
	return filtered, nil
}

func (s *Service) countryLock(countryCode string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[countryCode]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[countryCode] = lock
	}
	return lock
}
