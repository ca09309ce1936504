// Package evaluation runs the periodic threshold evaluation cycle and the
// deferred-notification release job.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/adminwatch/internal/cache"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	healthdomain "github.com/smallbiznis/adminwatch/internal/health/domain"
	notificationdomain "github.com/smallbiznis/adminwatch/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	referencedomain "github.com/smallbiznis/adminwatch/internal/reference/domain"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobEvaluateCountries = "evaluate_countries"
	JobReleaseDeferred   = "release_deferred_notifications"

	businessAlertCooldown = 24 * time.Hour
)

var ErrInvalidConfig = errors.New("evaluation: missing dependency")

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    *config.EvaluationConfigHolder
	Rules     thresholddomain.Service
	Snapshots snapshotdomain.Source
	Catalog   referencedomain.Catalog
	Health    healthdomain.Service
	Notifier  notificationdomain.Service
}

type Scheduler struct {
	log       *zap.Logger
	clock     clock.Clock
	cfg       *config.EvaluationConfigHolder
	rules     thresholddomain.Service
	snapshots snapshotdomain.Source
	catalog   referencedomain.Catalog
	health    healthdomain.Service
	notifier  notificationdomain.Service

	// sent business alerts keyed by rule, business and severity
	businessAlerts cache.Cache[string, struct{}]
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Config == nil || p.Rules == nil || p.Snapshots == nil ||
		p.Catalog == nil || p.Health == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:            p.Log.Named("evaluation").With(zap.String("component", "scheduler")),
		clock:          p.Clock,
		cfg:            p.Config,
		rules:          p.Rules,
		snapshots:      p.Snapshots,
		catalog:        p.Catalog,
		health:         p.Health,
		notifier:       p.Notifier,
		businessAlerts: cache.NewTTLCache[string, struct{}](time.Hour),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	evalMetrics := obsmetrics.Evaluation()
	evalMetrics.IncJobRun(name)

	err := fn(ctx)
	evalMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if _, errs := run.counts(); err != nil && errs == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next tick retries
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		evalMetrics.IncJobTimeout(name)
	}
	evalMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	cfg := s.cfg.Get()
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobEvaluateCountries, s.EvaluateCountriesJob},
		{JobReleaseDeferred, s.ReleaseDeferredJob},
	}
	for _, job := range jobs {
		if !cfg.JobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, cfg.JobTimeout, job.Run))
	}
	return err
}

// RunForever ticks until ctx is cancelled. The interval is re-read after
// every run so a reloaded evaluation.yml takes effect on the next tick.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Get().Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()
	nextRun := s.clock.Now().Add(interval)
	evalMetrics := obsmetrics.Evaluation()

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			evalMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("evaluation run failed", zap.Error(err))
		}
		interval = s.cfg.Get().Interval
		nextRun = nextRun.Add(interval)
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
