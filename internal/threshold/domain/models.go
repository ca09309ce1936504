package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
)

type ThresholdType string

const (
	ThresholdPercentageDrop ThresholdType = "percentageDrop"
	ThresholdAbsoluteDrop   ThresholdType = "absoluteDrop"
	ThresholdInactivityDays ThresholdType = "inactivityDays"
	ThresholdAbsolute       ThresholdType = "absolute"
	ThresholdPercentage     ThresholdType = "percentage"
	ThresholdDailyCount     ThresholdType = "dailyCount"
)

func (t ThresholdType) Valid() bool {
	switch t {
	case ThresholdPercentageDrop, ThresholdAbsoluteDrop, ThresholdInactivityDays,
		ThresholdAbsolute, ThresholdPercentage, ThresholdDailyCount:
		return true
	}
	return false
}

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so the most severe verdict wins.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func (s Severity) Breaching() bool {
	return s.Rank() > 0
}

type Rule struct {
	ID               snowflake.ID              `json:"id" gorm:"primaryKey"`
	Name             string                    `json:"name"`
	MetricType       snapshotdomain.MetricType `json:"metric_type"`
	ThresholdType    ThresholdType             `json:"threshold_type"`
	WarningValue     float64                   `json:"warning_value"`
	CriticalValue    float64                   `json:"critical_value"`
	ComparisonPeriod snapshotdomain.Period     `json:"comparison_period"`
	IsActive         bool                      `json:"is_active"`
	NotifyBusiness   bool                      `json:"notify_business"`
	NotifyAdmin      bool                      `json:"notify_admin"`
	CreatedBy        snowflake.ID              `json:"created_by"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (Rule) TableName() string { return "threshold_rules" }

// Verdict is the outcome of one rule against one snapshot.
type Verdict struct {
	RuleID          snowflake.ID              `json:"rule_id"`
	RuleName        string                    `json:"rule_name"`
	CountryCode     string                    `json:"country_code"`
	MetricType      snapshotdomain.MetricType `json:"metric_type"`
	Severity        Severity                  `json:"severity"`
	BreachMagnitude float64                   `json:"breach_magnitude"`
	NotifyBusiness  bool                      `json:"notify_business"`
	NotifyAdmin     bool                      `json:"notify_admin"`
	BusinessID      *snowflake.ID             `json:"business_id,omitempty"`
}

// CountryLevel reports whether the verdict came from a country aggregate
// snapshot rather than a single business.
func (v Verdict) CountryLevel() bool {
	return v.BusinessID == nil
}
