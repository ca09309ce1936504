package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"gorm.io/gorm"
)

type MetricType string

const (
	MetricRevenue        MetricType = "revenue"
	MetricOrders         MetricType = "orders"
	MetricInactivity     MetricType = "inactivity"
	MetricRating         MetricType = "rating"
	MetricConversionRate MetricType = "conversionRate"
	MetricUsers          MetricType = "users"
	MetricBusinesses     MetricType = "businesses"
)

func (m MetricType) Valid() bool {
	switch m {
	case MetricRevenue, MetricOrders, MetricInactivity, MetricRating,
		MetricConversionRate, MetricUsers, MetricBusinesses:
		return true
	}
	return false
}

type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter:
		return true
	}
	return false
}

// Snapshot is one reading supplied by the metric collector. BusinessID is set
// for business-scoped readings and nil for country aggregates.
type Snapshot struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	CountryCode  string        `json:"country_code"`
	MetricType   MetricType    `json:"metric_type"`
	Period       Period        `json:"period"`
	CurrentValue float64       `json:"current_value"`
	PriorValue   float64       `json:"prior_value"`
	BusinessID   *snowflake.ID `json:"business_id,omitempty"`
	CapturedAt   time.Time     `json:"captured_at"`
}

func (Snapshot) TableName() string { return "metric_snapshots" }

var (
	ErrInvalidCountry    = fmt.Errorf("%w: invalid_country_code", apperror.ErrValidationFailed)
	ErrInvalidMetricType = fmt.Errorf("%w: invalid_metric_type", apperror.ErrValidationFailed)
	ErrInvalidPeriod     = fmt.Errorf("%w: invalid_period", apperror.ErrValidationFailed)
	ErrInvalidValue      = fmt.Errorf("%w: invalid_value", apperror.ErrValidationFailed)
)

type Repository interface {
	ListCountries(ctx context.Context, db *gorm.DB) ([]string, error)
	ListByCountry(ctx context.Context, db *gorm.DB, countryCode string) ([]Snapshot, error)
	Upsert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
}

// Source is the read side used by evaluation.
type Source interface {
	Countries(ctx context.Context) ([]string, error)
	ForCountry(ctx context.Context, countryCode string) ([]Snapshot, error)
}

type Service interface {
	Source
	Ingest(ctx context.Context, snapshot Snapshot) error
}
