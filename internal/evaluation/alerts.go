package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	healthdomain "github.com/smallbiznis/adminwatch/internal/health/domain"
	notificationdomain "github.com/smallbiznis/adminwatch/internal/notification/domain"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"github.com/smallbiznis/adminwatch/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

func (s *Scheduler) dispatchTransition(ctx context.Context, event healthdomain.TransitionEvent, verdicts []thresholddomain.Verdict) error {
	alert := notificationdomain.Event{
		ID:          correlation.NewID(),
		CountryCode: event.CountryCode,
		Severity:    string(event.To),
		OccurredAt:  event.OccurredAt,
		Data: map[string]any{
			"from":               string(event.From),
			"to":                 string(event.To),
			"triggering_metrics": event.TriggeringMetrics,
			"correlation_id":     correlation.ExtractCorrelationID(ctx),
		},
	}
	if event.Recovery() {
		alert.Category = notificationdomain.CategoryCountryRecovery
		alert.Title = fmt.Sprintf("%s has recovered", event.CountryCode)
		alert.Body = fmt.Sprintf("All thresholds for %s are back within limits.", event.CountryCode)
		if event.StrugglingSince != nil {
			alert.Data["struggling_since"] = event.StrugglingSince
		}
	} else {
		alert.Category = notificationdomain.CategoryCountryHealth
		alert.Title = fmt.Sprintf("%s is %s", event.CountryCode, event.To)
		alert.Body = fmt.Sprintf("%s moved from %s to %s: %s.",
			event.CountryCode, event.From, event.To, strings.Join(breachSummary(verdicts), ", "))
	}

	summary, err := s.notifier.Dispatch(ctx, alert)
	if err != nil {
		return fmt.Errorf("dispatch %s alert: %w", alert.Category, err)
	}
	s.logger(ctx).Info("country alert dispatched",
		zap.String("country_code", event.CountryCode),
		zap.String("category", string(alert.Category)),
		zap.Int("recipients", summary.Recipients),
		zap.Int("delivered", summary.Delivered),
		zap.Int("deferred", summary.Deferred),
		zap.Int("dropped", summary.Dropped),
	)
	return nil
}

// dispatchBusinessAlerts notifies the owning business of every breaching
// business-scoped verdict whose rule opts in. A rule, business and severity
// triple alerts at most once per cooldown.
func (s *Scheduler) dispatchBusinessAlerts(ctx context.Context, verdicts []thresholddomain.Verdict) error {
	var errs error
	for _, v := range verdicts {
		if v.CountryLevel() || !v.NotifyBusiness || !v.Severity.Breaching() {
			continue
		}
		key := businessAlertKey(v)
		if _, sent := s.businessAlerts.Get(key); sent {
			continue
		}

		alert := notificationdomain.Event{
			ID:           correlation.NewID(),
			Category:     notificationdomain.CategoryBusinessThreshold,
			CountryCode:  v.CountryCode,
			Severity:     string(v.Severity),
			Title:        fmt.Sprintf("%s threshold reached", v.RuleName),
			Body:         fmt.Sprintf("Your %s is %s (%.2f).", v.MetricType, v.Severity, v.BreachMagnitude),
			RecipientIDs: []snowflake.ID{*v.BusinessID},
			OccurredAt:   s.clock.Now(),
			Data: map[string]any{
				"rule_id":          v.RuleID.String(),
				"metric_type":      string(v.MetricType),
				"breach_magnitude": v.BreachMagnitude,
				"correlation_id":   correlation.ExtractCorrelationID(ctx),
			},
		}
		if _, err := s.notifier.Dispatch(ctx, alert); err != nil {
			errs = errors.Join(errs, fmt.Errorf("dispatch business alert %s: %w", key, err))
			continue
		}
		s.businessAlerts.Set(key, struct{}{}, businessAlertCooldown)
	}
	return errs
}

func businessAlertKey(v thresholddomain.Verdict) string {
	return v.RuleID.String() + ":" + v.BusinessID.String() + ":" + string(v.Severity)
}

func breachSummary(verdicts []thresholddomain.Verdict) []string {
	var out []string
	for _, v := range verdicts {
		if !v.CountryLevel() || !v.Severity.Breaching() {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s (%.2f)", v.MetricType, v.Severity, v.BreachMagnitude))
	}
	return out
}
