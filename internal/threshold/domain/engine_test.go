package domain

import (
	"math"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revenueDropRule() Rule {
	return Rule{
		ID:               1,
		Name:             "Revenue drop",
		MetricType:       snapshotdomain.MetricRevenue,
		ThresholdType:    ThresholdPercentageDrop,
		WarningValue:     10,
		CriticalValue:    25,
		ComparisonPeriod: snapshotdomain.PeriodWeek,
		IsActive:         true,
		NotifyAdmin:      true,
	}
}

func revenueSnapshot(prior, current float64) snapshotdomain.Snapshot {
	return snapshotdomain.Snapshot{
		CountryCode:  "CI",
		MetricType:   snapshotdomain.MetricRevenue,
		Period:       snapshotdomain.PeriodWeek,
		PriorValue:   prior,
		CurrentValue: current,
	}
}

func TestPercentageDropBeyondCriticalIsCritical(t *testing.T) {
	v, ok := Evaluate(revenueDropRule(), revenueSnapshot(100000, 72000))
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, v.Severity)
	assert.InDelta(t, 28.0, v.BreachMagnitude, 1e-9)
	assert.Equal(t, "CI", v.CountryCode)
}

func TestSmallPercentageDropIsNone(t *testing.T) {
	v, ok := Evaluate(revenueDropRule(), revenueSnapshot(100000, 95000))
	require.True(t, ok)
	assert.Equal(t, SeverityNone, v.Severity)
	assert.False(t, v.Severity.Breaching())
}

func TestPercentageDropWarningBand(t *testing.T) {
	v, ok := Evaluate(revenueDropRule(), revenueSnapshot(100, 88))
	require.True(t, ok)
	assert.Equal(t, SeverityWarning, v.Severity)

	v, ok = Evaluate(revenueDropRule(), revenueSnapshot(100, 90))
	require.True(t, ok)
	assert.Equal(t, SeverityWarning, v.Severity, "exactly at warning breaches")
}

func TestZeroBaselineYieldsNoVerdict(t *testing.T) {
	_, ok := Evaluate(revenueDropRule(), revenueSnapshot(0, 10))
	assert.False(t, ok)

	rule := revenueDropRule()
	rule.ThresholdType = ThresholdPercentage
	_, ok = Evaluate(rule, revenueSnapshot(0, 10))
	assert.False(t, ok)
}

func TestInactiveOrMismatchedRuleIsSkipped(t *testing.T) {
	rule := revenueDropRule()
	rule.IsActive = false
	_, ok := Evaluate(rule, revenueSnapshot(100, 10))
	assert.False(t, ok)

	snap := revenueSnapshot(100, 10)
	snap.Period = snapshotdomain.PeriodMonth
	_, ok = Evaluate(revenueDropRule(), snap)
	assert.False(t, ok)

	snap = revenueSnapshot(100, 10)
	snap.MetricType = snapshotdomain.MetricOrders
	_, ok = Evaluate(revenueDropRule(), snap)
	assert.False(t, ok)

	_, ok = Evaluate(revenueDropRule(), revenueSnapshot(math.NaN(), 10))
	assert.False(t, ok)
}

func TestRawThresholdTypes(t *testing.T) {
	cases := []struct {
		name     string
		typ      ThresholdType
		metric   snapshotdomain.MetricType
		prior    float64
		current  float64
		expected Severity
	}{
		{"absolute drop critical", ThresholdAbsoluteDrop, snapshotdomain.MetricOrders, 500, 200, SeverityCritical},
		{"absolute drop rising is none", ThresholdAbsoluteDrop, snapshotdomain.MetricOrders, 200, 500, SeverityNone},
		{"absolute warning", ThresholdAbsolute, snapshotdomain.MetricRating, 0, 150, SeverityWarning},
		{"inactivity days critical", ThresholdInactivityDays, snapshotdomain.MetricInactivity, 0, 300, SeverityCritical},
		{"daily count rising is breach", ThresholdDailyCount, snapshotdomain.MetricUsers, 1000, 260, SeverityCritical},
		{"daily count below warning", ThresholdDailyCount, snapshotdomain.MetricUsers, 1000, 50, SeverityNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := Rule{
				Name:             tc.name,
				MetricType:       tc.metric,
				ThresholdType:    tc.typ,
				WarningValue:     100,
				CriticalValue:    250,
				ComparisonPeriod: snapshotdomain.PeriodDay,
				IsActive:         true,
			}
			v, ok := Evaluate(rule, snapshotdomain.Snapshot{
				CountryCode:  "BJ",
				MetricType:   tc.metric,
				Period:       snapshotdomain.PeriodDay,
				PriorValue:   tc.prior,
				CurrentValue: tc.current,
			})
			require.True(t, ok)
			assert.Equal(t, tc.expected, v.Severity)
		})
	}
}

func TestEvaluateCountryMatchesSnapshotsPerRule(t *testing.T) {
	orders := Rule{
		ID:               2,
		Name:             "Orders",
		MetricType:       snapshotdomain.MetricOrders,
		ThresholdType:    ThresholdAbsoluteDrop,
		WarningValue:     10,
		CriticalValue:    50,
		ComparisonPeriod: snapshotdomain.PeriodDay,
		IsActive:         true,
	}
	inactive := revenueDropRule()
	inactive.ID = 3
	inactive.IsActive = false

	business := snowflake.ID(77)
	snapshots := []snapshotdomain.Snapshot{
		revenueSnapshot(100, 70),
		{CountryCode: "CI", MetricType: snapshotdomain.MetricOrders, Period: snapshotdomain.PeriodDay, PriorValue: 100, CurrentValue: 80},
		{CountryCode: "CI", MetricType: snapshotdomain.MetricRevenue, Period: snapshotdomain.PeriodWeek, PriorValue: 100, CurrentValue: 50, BusinessID: &business},
	}

	verdicts := EvaluateCountry([]Rule{revenueDropRule(), orders, inactive}, snapshots)
	require.Len(t, verdicts, 3)

	var countryLevel, businessLevel int
	for _, v := range verdicts {
		if v.CountryLevel() {
			countryLevel++
		} else {
			businessLevel++
			assert.Equal(t, business, *v.BusinessID)
		}
	}
	assert.Equal(t, 2, countryLevel)
	assert.Equal(t, 1, businessLevel)
	assert.Empty(t, EvaluateCountry([]Rule{revenueDropRule()}, nil))
}

func TestValidateRejectsCriticalBelowWarning(t *testing.T) {
	rule := revenueDropRule()
	rule.WarningValue = 25
	rule.CriticalValue = 10

	err := Validate(rule)
	assert.ErrorIs(t, err, ErrCriticalBelowWarning)
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(revenueDropRule()))

	cases := map[string]struct {
		mutate func(*Rule)
		err    error
	}{
		"empty name":     {func(r *Rule) { r.Name = "  " }, ErrInvalidName},
		"metric":         {func(r *Rule) { r.MetricType = "gmv" }, ErrInvalidMetricType},
		"threshold type": {func(r *Rule) { r.ThresholdType = "ratio" }, ErrInvalidThresholdType},
		"period":         {func(r *Rule) { r.ComparisonPeriod = "year" }, ErrInvalidPeriod},
		"negative":       {func(r *Rule) { r.WarningValue = -1 }, ErrInvalidValue},
		"infinite":       {func(r *Rule) { r.CriticalValue = math.Inf(1) }, ErrInvalidValue},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rule := revenueDropRule()
			tc.mutate(&rule)
			assert.ErrorIs(t, Validate(rule), tc.err)
		})
	}

	equal := revenueDropRule()
	equal.WarningValue, equal.CriticalValue = 10, 10
	assert.NoError(t, Validate(equal))
}
