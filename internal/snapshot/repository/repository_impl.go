package repository

import (
	"context"
	"fmt"

	"github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	pkgdb "github.com/smallbiznis/adminwatch/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListCountries(ctx context.Context, db *gorm.DB) ([]string, error) {
	var codes []string
	err := db.WithContext(ctx).
		Raw(`SELECT DISTINCT country_code FROM metric_snapshots ORDER BY country_code`).
		Scan(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repo) ListByCountry(ctx context.Context, db *gorm.DB, countryCode string) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot
	err := db.WithContext(ctx).
		Raw(`SELECT id, country_code, metric_type, period, current_value, prior_value, business_id, captured_at
			FROM metric_snapshots
			WHERE country_code = ?
			ORDER BY metric_type, period, id`, countryCode).
		Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Upsert replaces the reading for the snapshot's country/metric/period/business key.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	updated, err := r.update(ctx, db, snapshot)
	if err != nil || updated {
		return err
	}
	return r.insertOrRefresh(ctx, db, snapshot)
}

// insertOrRefresh inserts a new key. When another ingest created the same key
// after our update missed, its row is updated instead.
func (r *repo) insertOrRefresh(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO metric_snapshots (id, country_code, metric_type, period, current_value, prior_value, business_id, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.CountryCode,
		snapshot.MetricType,
		snapshot.Period,
		snapshot.CurrentValue,
		snapshot.PriorValue,
		snapshot.BusinessID,
		snapshot.CapturedAt,
	).Error
	if !pkgdb.IsDuplicateKeyErr(err) {
		return err
	}
	updated, err := r.update(ctx, db, snapshot)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("snapshot key %s/%s/%s vanished during upsert", snapshot.CountryCode, snapshot.MetricType, snapshot.Period)
	}
	return nil
}

func (r *repo) update(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) (bool, error) {
	stmt := db.WithContext(ctx).Exec(
		`UPDATE metric_snapshots
		 SET current_value = ?, prior_value = ?, captured_at = ?
		 WHERE country_code = ? AND metric_type = ? AND period = ? AND COALESCE(business_id, 0) = ?`,
		snapshot.CurrentValue,
		snapshot.PriorValue,
		snapshot.CapturedAt,
		snapshot.CountryCode,
		snapshot.MetricType,
		snapshot.Period,
		businessKey(snapshot),
	)
	if stmt.Error != nil {
		return false, stmt.Error
	}
	return stmt.RowsAffected > 0, nil
}

func businessKey(snapshot *domain.Snapshot) int64 {
	if snapshot.BusinessID == nil {
		return 0
	}
	return int64(*snapshot.BusinessID)
}
