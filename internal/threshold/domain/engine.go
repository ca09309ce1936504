package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/smallbiznis/adminwatch/internal/apperror"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
)

var (
	ErrInvalidName          = fmt.Errorf("%w: invalid_name", apperror.ErrValidationFailed)
	ErrInvalidMetricType    = fmt.Errorf("%w: invalid_metric_type", apperror.ErrValidationFailed)
	ErrInvalidThresholdType = fmt.Errorf("%w: invalid_threshold_type", apperror.ErrValidationFailed)
	ErrInvalidPeriod        = fmt.Errorf("%w: invalid_comparison_period", apperror.ErrValidationFailed)
	ErrInvalidValue         = fmt.Errorf("%w: invalid_threshold_value", apperror.ErrValidationFailed)
	ErrCriticalBelowWarning = fmt.Errorf("%w: critical_below_warning", apperror.ErrValidationFailed)
)

const maxRuleNameLength = 120

// Validate checks a rule before it is persisted. Every threshold type breaches
// on "magnitude >= value", so critical must never be below warning.
func Validate(rule Rule) error {
	name := strings.TrimSpace(rule.Name)
	if name == "" || len(name) > maxRuleNameLength {
		return ErrInvalidName
	}
	if !rule.MetricType.Valid() {
		return ErrInvalidMetricType
	}
	if !rule.ThresholdType.Valid() {
		return ErrInvalidThresholdType
	}
	if !rule.ComparisonPeriod.Valid() {
		return ErrInvalidPeriod
	}
	if !finite(rule.WarningValue) || !finite(rule.CriticalValue) ||
		rule.WarningValue < 0 || rule.CriticalValue < 0 {
		return ErrInvalidValue
	}
	if rule.CriticalValue < rule.WarningValue {
		return ErrCriticalBelowWarning
	}
	return nil
}

// Evaluate applies rule to snap. ok is false when no verdict is produced:
// inactive rule, snapshot for another metric or period, non-finite readings,
// or a zero baseline for relative thresholds.
func Evaluate(rule Rule, snap snapshotdomain.Snapshot) (Verdict, bool) {
	if !rule.IsActive {
		return Verdict{}, false
	}
	if rule.MetricType != snap.MetricType || rule.ComparisonPeriod != snap.Period {
		return Verdict{}, false
	}
	if !finite(snap.CurrentValue) || !finite(snap.PriorValue) {
		return Verdict{}, false
	}

	var magnitude float64
	switch rule.ThresholdType {
	case ThresholdPercentageDrop, ThresholdPercentage:
		if snap.PriorValue == 0 {
			return Verdict{}, false
		}
		magnitude = (snap.PriorValue - snap.CurrentValue) / snap.PriorValue * 100
	case ThresholdAbsoluteDrop:
		magnitude = snap.PriorValue - snap.CurrentValue
	case ThresholdAbsolute, ThresholdInactivityDays, ThresholdDailyCount:
		magnitude = snap.CurrentValue
	default:
		return Verdict{}, false
	}

	return Verdict{
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		CountryCode:     snap.CountryCode,
		MetricType:      rule.MetricType,
		Severity:        classify(magnitude, rule.WarningValue, rule.CriticalValue),
		BreachMagnitude: magnitude,
		NotifyBusiness:  rule.NotifyBusiness,
		NotifyAdmin:     rule.NotifyAdmin,
		BusinessID:      snap.BusinessID,
	}, true
}

// EvaluateCountry runs every active rule against the snapshots of one country.
func EvaluateCountry(rules []Rule, snapshots []snapshotdomain.Snapshot) []Verdict {
	var verdicts []Verdict
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		for _, snap := range snapshots {
			if v, ok := Evaluate(rule, snap); ok {
				verdicts = append(verdicts, v)
			}
		}
	}
	return verdicts
}

func classify(magnitude, warning, critical float64) Severity {
	switch {
	case magnitude >= critical:
		return SeverityCritical
	case magnitude >= warning:
		return SeverityWarning
	default:
		return SeverityNone
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
