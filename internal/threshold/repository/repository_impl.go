package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const ruleColumns = `id, name, metric_type, threshold_type, warning_value, critical_value,
	comparison_period, is_active, notify_business, notify_admin, created_by, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO threshold_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.Name,
		rule.MetricType,
		rule.ThresholdType,
		rule.WarningValue,
		rule.CriticalValue,
		rule.ComparisonPeriod,
		rule.IsActive,
		rule.NotifyBusiness,
		rule.NotifyAdmin,
		rule.CreatedBy,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	stmt := db.WithContext(ctx).Exec(
		`UPDATE threshold_rules
		 SET name = ?, metric_type = ?, threshold_type = ?, warning_value = ?, critical_value = ?,
		     comparison_period = ?, is_active = ?, notify_business = ?, notify_admin = ?, updated_at = ?
		 WHERE id = ?`,
		rule.Name,
		rule.MetricType,
		rule.ThresholdType,
		rule.WarningValue,
		rule.CriticalValue,
		rule.ComparisonPeriod,
		rule.IsActive,
		rule.NotifyBusiness,
		rule.NotifyAdmin,
		rule.UpdatedAt,
		rule.ID,
	)
	if stmt.Error != nil {
		return stmt.Error
	}
	if stmt.RowsAffected == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	stmt := db.WithContext(ctx).Exec(`DELETE FROM threshold_rules WHERE id = ?`, id)
	if stmt.Error != nil {
		return stmt.Error
	}
	if stmt.RowsAffected == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).
		Raw(`SELECT `+ruleColumns+` FROM threshold_rules WHERE id = ?`, id).
		Take(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM threshold_rules WHERE 1=1`
	args := []any{}
	if metric := strings.TrimSpace(filter.MetricType); metric != "" {
		query += ` AND metric_type = ?`
		args = append(args, metric)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var rules []domain.Rule
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) StrugglingRuleRefs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var rows []struct {
		TriggeringRuleIDs datatypes.JSONSlice[string] `gorm:"column:triggering_rule_ids"`
	}
	err := db.WithContext(ctx).
		Raw(`SELECT triggering_rule_ids FROM country_health_statuses WHERE is_struggling = ?`, true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, row := range rows {
		refs = append(refs, row.TriggeringRuleIDs...)
	}
	return refs, nil
}
