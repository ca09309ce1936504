package evaluation

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"

	healthdomain "github.com/smallbiznis/adminwatch/internal/health/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EvaluateCountriesJob evaluates every active rule against the latest
// snapshots of each country, applies the outcome to country health and emits
// transition and business alerts. Countries currently struggling are always
// evaluated so they can recover once their snapshots stop breaching.
func (s *Scheduler) EvaluateCountriesJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	cfg := s.cfg.Get()

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return err
	}
	countries, err := s.candidateCountries(ctx)
	if err != nil {
		return err
	}
	if len(countries) == 0 {
		return nil
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		processed atomic.Int64
		failed    atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, country := range countries {
		g.Go(func() error {
			if err := s.evaluateCountry(gctx, rules, country); err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return err
				}
				failed.Add(1)
				s.logJobError(gctx, run, "country evaluation failed", country, err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	err = g.Wait()

	run.AddProcessed(int(processed.Load()))
	obsmetrics.Evaluation().AddItemsProcessed(JobEvaluateCountries, "countries", int(processed.Load()))
	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		s.logger(ctx).Warn("evaluation cycle finished with failures", zap.Int64("failed", n))
	}
	return nil
}

func (s *Scheduler) candidateCountries(ctx context.Context) ([]string, error) {
	withData, err := s.snapshots.Countries(ctx)
	if err != nil {
		return nil, err
	}
	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return nil, err
	}
	struggling, err := s.health.ListStruggling(ctx, known)
	if err != nil {
		return nil, err
	}

	countries := make([]string, 0, len(withData)+len(struggling))
	for _, code := range withData {
		countries = append(countries, strings.ToUpper(strings.TrimSpace(code)))
	}
	for _, status := range struggling {
		countries = append(countries, status.CountryCode)
	}
	slices.Sort(countries)
	return slices.Compact(countries), nil
}

func (s *Scheduler) evaluateCountry(ctx context.Context, rules []thresholddomain.Rule, country string) error {
	snapshots, err := s.snapshots.ForCountry(ctx, country)
	if err != nil {
		return err
	}
	verdicts := thresholddomain.EvaluateCountry(rules, snapshots)

	evalMetrics := obsmetrics.Evaluation()
	for _, v := range verdicts {
		if v.Severity.Breaching() {
			evalMetrics.IncVerdict(string(v.Severity))
		}
	}

	result, err := s.health.Apply(ctx, country, verdicts)
	if err != nil {
		return err
	}

	var alertErr error
	if result.PendingAlert != nil {
		alertErr = s.resolvePendingAlert(ctx, result.Status, *result.PendingAlert, verdicts)
	}
	alertErr = errors.Join(alertErr, s.dispatchBusinessAlerts(ctx, verdicts))
	return alertErr
}

// resolvePendingAlert sends the outstanding transition alert and clears it.
// A failed dispatch leaves it pending for the next cycle.
func (s *Scheduler) resolvePendingAlert(ctx context.Context, status healthdomain.Status, pending healthdomain.TransitionEvent, verdicts []thresholddomain.Verdict) error {
	if shouldAlertAdmins(pending, verdicts) {
		if err := s.dispatchTransition(ctx, pending, verdicts); err != nil {
			return err
		}
	}
	return s.health.ResolveAlert(ctx, status)
}

// shouldAlertAdmins reports whether a transition warrants an admin alert.
// Recoveries always do; escalations only when a breaching country-level rule
// asks for admin notification.
func shouldAlertAdmins(event healthdomain.TransitionEvent, verdicts []thresholddomain.Verdict) bool {
	if event.Recovery() {
		return true
	}
	for _, v := range verdicts {
		if v.CountryLevel() && v.Severity.Breaching() && v.NotifyAdmin {
			return true
		}
	}
	return false
}

// ReleaseDeferredJob hands quiet-hours deferrals whose window has closed back
// to the router.
func (s *Scheduler) ReleaseDeferredJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	summary, err := s.notifier.ReleaseDue(ctx, s.clock.Now())
	released := summary.Delivered + summary.Dropped
	run.AddProcessed(released)
	obsmetrics.Evaluation().AddItemsProcessed(JobReleaseDeferred, "deferred_notifications", released)
	return err
}
