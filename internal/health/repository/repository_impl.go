package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/smallbiznis/adminwatch/internal/health/domain"
	"github.com/smallbiznis/adminwatch/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type statusRow struct {
	CountryCode       string                      `gorm:"column:country_code"`
	IsStruggling      bool                        `gorm:"column:is_struggling"`
	Severity          *string                     `gorm:"column:severity"`
	StrugglingSince   *time.Time                  `gorm:"column:struggling_since"`
	LastStatusChange  time.Time                   `gorm:"column:last_status_change"`
	TriggeringMetrics datatypes.JSONSlice[string] `gorm:"column:triggering_metrics"`
	TriggeringRuleIDs datatypes.JSONSlice[string] `gorm:"column:triggering_rule_ids"`
	PendingAlert      datatypes.JSON              `gorm:"column:pending_alert"`
}

func (r statusRow) toDomain() (domain.Status, error) {
	state := domain.StateHealthy
	if r.IsStruggling && r.Severity != nil {
		state = domain.State(*r.Severity)
	}
	var pending *domain.TransitionEvent
	if len(r.PendingAlert) > 0 {
		if err := json.Unmarshal(r.PendingAlert, &pending); err != nil {
			return domain.Status{}, err
		}
	}
	return domain.Status{
		CountryCode:       r.CountryCode,
		State:             state,
		StrugglingSince:   r.StrugglingSince,
		LastStatusChange:  r.LastStatusChange,
		TriggeringMetrics: nonNil(r.TriggeringMetrics),
		TriggeringRuleIDs: nonNil(r.TriggeringRuleIDs),
		PendingAlert:      pending,
	}, nil
}

const statusColumns = `country_code, is_struggling, severity, struggling_since, last_status_change, triggering_metrics, triggering_rule_ids, pending_alert`

func (r *repo) Find(ctx context.Context, conn *gorm.DB, countryCode string) (*domain.Status, error) {
	var row statusRow
	err := conn.WithContext(ctx).
		Raw(`SELECT `+statusColumns+` FROM country_health_statuses WHERE country_code = ?`, countryCode).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	status, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *repo) CompareAndSet(ctx context.Context, conn *gorm.DB, next domain.Status, expectedLastChange *time.Time) error {
	var severity *string
	if next.IsStruggling() {
		value := string(next.State)
		severity = &value
	}
	metrics := datatypes.JSONSlice[string](nonNil(next.TriggeringMetrics))
	ruleIDs := datatypes.JSONSlice[string](nonNil(next.TriggeringRuleIDs))
	var pending datatypes.JSON
	if next.PendingAlert != nil {
		raw, err := json.Marshal(next.PendingAlert)
		if err != nil {
			return err
		}
		pending = raw
	}

	if expectedLastChange == nil {
		err := conn.WithContext(ctx).Exec(
			`INSERT INTO country_health_statuses (`+statusColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			next.CountryCode,
			next.IsStruggling(),
			severity,
			next.StrugglingSince,
			next.LastStatusChange,
			metrics,
			ruleIDs,
			pending,
		).Error
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrStaleStatus
		}
		return err
	}

	stmt := conn.WithContext(ctx).Exec(
		`UPDATE country_health_statuses
		 SET is_struggling = ?, severity = ?, struggling_since = ?, last_status_change = ?,
		     triggering_metrics = ?, triggering_rule_ids = ?, pending_alert = ?
		 WHERE country_code = ? AND last_status_change = ?`,
		next.IsStruggling(),
		severity,
		next.StrugglingSince,
		next.LastStatusChange,
		metrics,
		ruleIDs,
		pending,
		next.CountryCode,
		*expectedLastChange,
	)
	if stmt.Error != nil {
		return stmt.Error
	}
	if stmt.RowsAffected == 0 {
		return domain.ErrStaleStatus
	}
	return nil
}

func (r *repo) ListStruggling(ctx context.Context, conn *gorm.DB) ([]domain.Status, error) {
	var rows []statusRow
	err := conn.WithContext(ctx).
		Raw(`SELECT `+statusColumns+` FROM country_health_statuses WHERE is_struggling = ?`, true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	statuses := make([]domain.Status, 0, len(rows))
	for _, row := range rows {
		status, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (r *repo) ClearPendingAlert(ctx context.Context, conn *gorm.DB, countryCode string, lastStatusChange time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE country_health_statuses SET pending_alert = NULL WHERE country_code = ? AND last_status_change = ?`,
		countryCode,
		lastStatusChange,
	).Error
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
