package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	snapshotdomain "github.com/smallbiznis/adminwatch/internal/snapshot/domain"
)

var (
	ErrRuleNotFound = fmt.Errorf("%w: threshold_rule_not_found", apperror.ErrNotFound)
	ErrRuleInUse    = fmt.Errorf("%w: threshold_rule_in_use", apperror.ErrConflict)
)

type CreateRuleRequest struct {
	Name             string                    `json:"name"`
	MetricType       snapshotdomain.MetricType `json:"metric_type"`
	ThresholdType    ThresholdType             `json:"threshold_type"`
	WarningValue     float64                   `json:"warning_value"`
	CriticalValue    float64                   `json:"critical_value"`
	ComparisonPeriod snapshotdomain.Period     `json:"comparison_period"`
	IsActive         *bool                     `json:"is_active"`
	NotifyBusiness   bool                      `json:"notify_business"`
	NotifyAdmin      *bool                     `json:"notify_admin"`
}

type UpdateRuleRequest struct {
	Name             *string                    `json:"name"`
	MetricType       *snapshotdomain.MetricType `json:"metric_type"`
	ThresholdType    *ThresholdType             `json:"threshold_type"`
	WarningValue     *float64                   `json:"warning_value"`
	CriticalValue    *float64                   `json:"critical_value"`
	ComparisonPeriod *snapshotdomain.Period     `json:"comparison_period"`
	NotifyBusiness   *bool                      `json:"notify_business"`
	NotifyAdmin      *bool                      `json:"notify_admin"`
}

type ListRulesRequest struct {
	MetricType string
	ActiveOnly bool
}

type Service interface {
	Create(ctx context.Context, actorID snowflake.ID, req CreateRuleRequest) (*Rule, error)
	Update(ctx context.Context, actorID snowflake.ID, id snowflake.ID, req UpdateRuleRequest) (*Rule, error)
	Toggle(ctx context.Context, actorID snowflake.ID, id snowflake.ID, active bool) (*Rule, error)
	Delete(ctx context.Context, actorID snowflake.ID, id snowflake.ID) error
	Get(ctx context.Context, actorID snowflake.ID, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, actorID snowflake.ID, req ListRulesRequest) ([]Rule, error)
	// ActiveRules is the unauthenticated read used by the evaluation cycle.
	ActiveRules(ctx context.Context) ([]Rule, error)
}
