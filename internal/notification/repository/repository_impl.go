package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type preferenceRow struct {
	AdminID            snowflake.ID                 `gorm:"column:admin_id"`
	Email              bool                         `gorm:"column:email"`
	Push               bool                         `gorm:"column:push"`
	InApp              bool                         `gorm:"column:in_app"`
	Categories         datatypes.JSONMap            `gorm:"column:categories"`
	QuietHoursEnabled  bool                         `gorm:"column:quiet_hours_enabled"`
	QuietStart         string                       `gorm:"column:quiet_start"`
	QuietEnd           string                       `gorm:"column:quiet_end"`
	Timezone           string                       `gorm:"column:timezone"`
	MonitoredCountries *datatypes.JSONSlice[string] `gorm:"column:monitored_countries"`
	Version            int64                        `gorm:"column:version"`
	UpdatedAt          time.Time                    `gorm:"column:updated_at"`
}

func (r preferenceRow) toDomain() domain.Preference {
	categories := make(map[string]bool, len(r.Categories))
	for key, value := range r.Categories {
		if enabled, ok := value.(bool); ok {
			categories[key] = enabled
		}
	}
	var monitored []string
	if r.MonitoredCountries != nil {
		monitored = append([]string{}, (*r.MonitoredCountries)...)
	}
	return domain.Preference{
		AdminID:            r.AdminID,
		Email:              r.Email,
		Push:               r.Push,
		InApp:              r.InApp,
		Categories:         categories,
		QuietHoursEnabled:  r.QuietHoursEnabled,
		QuietStart:         r.QuietStart,
		QuietEnd:           r.QuietEnd,
		Timezone:           r.Timezone,
		MonitoredCountries: monitored,
		Version:            r.Version,
		UpdatedAt:          r.UpdatedAt,
	}
}

func categoriesValue(categories map[string]bool) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range categories {
		out[key] = value
	}
	return out
}

func monitoredValue(countries []string) *datatypes.JSONSlice[string] {
	if countries == nil {
		return nil
	}
	value := datatypes.JSONSlice[string](countries)
	return &value
}

const preferenceColumns = `admin_id, email, push, in_app, categories, quiet_hours_enabled,
	quiet_start, quiet_end, timezone, monitored_countries, version, updated_at`

func (r *repo) FindPreference(ctx context.Context, conn *gorm.DB, adminID snowflake.ID) (*domain.Preference, error) {
	var row preferenceRow
	err := conn.WithContext(ctx).
		Raw(`SELECT `+preferenceColumns+` FROM notification_preferences WHERE admin_id = ?`, adminID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pref := row.toDomain()
	return &pref, nil
}

func (r *repo) InsertPreference(ctx context.Context, conn *gorm.DB, pref *domain.Preference) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO notification_preferences (`+preferenceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pref.AdminID,
		pref.Email,
		pref.Push,
		pref.InApp,
		categoriesValue(pref.Categories),
		pref.QuietHoursEnabled,
		pref.QuietStart,
		pref.QuietEnd,
		pref.Timezone,
		monitoredValue(pref.MonitoredCountries),
		pref.Version,
		pref.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrVersionConflict
	}
	return err
}

func (r *repo) UpdatePreference(ctx context.Context, conn *gorm.DB, pref *domain.Preference, expectedVersion int64) error {
	stmt := conn.WithContext(ctx).Exec(
		`UPDATE notification_preferences
		 SET email = ?, push = ?, in_app = ?, categories = ?, quiet_hours_enabled = ?,
		     quiet_start = ?, quiet_end = ?, timezone = ?, monitored_countries = ?,
		     version = ?, updated_at = ?
		 WHERE admin_id = ? AND version = ?`,
		pref.Email,
		pref.Push,
		pref.InApp,
		categoriesValue(pref.Categories),
		pref.QuietHoursEnabled,
		pref.QuietStart,
		pref.QuietEnd,
		pref.Timezone,
		monitoredValue(pref.MonitoredCountries),
		pref.Version,
		pref.UpdatedAt,
		pref.AdminID,
		expectedVersion,
	)
	if stmt.Error != nil {
		return stmt.Error
	}
	if stmt.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *repo) InsertDeferred(ctx context.Context, conn *gorm.DB, deferred *domain.Deferred) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO deferred_notifications (id, recipient_id, event, deliver_after, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		deferred.ID,
		deferred.RecipientID,
		deferred.Event,
		deferred.DeliverAfter,
		deferred.Status,
		deferred.CreatedAt,
	).Error
}

func (r *repo) ListDueDeferred(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Deferred, error) {
	var rows []domain.Deferred
	err := conn.WithContext(ctx).
		Raw(`SELECT id, recipient_id, event, deliver_after, status, created_at, released_at
			FROM deferred_notifications
			WHERE status = ? AND deliver_after <= ?
			ORDER BY deliver_after ASC, id ASC
			LIMIT ?`, domain.DeferredPending, now, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkDeferred(ctx context.Context, conn *gorm.DB, id snowflake.ID, status domain.DeferredStatus, at time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deferred_notifications SET status = ?, released_at = ? WHERE id = ? AND status = ?`,
		status, at, id, domain.DeferredPending,
	).Error
}

func (r *repo) RescheduleDeferred(ctx context.Context, conn *gorm.DB, id snowflake.ID, deliverAfter time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deferred_notifications SET deliver_after = ? WHERE id = ? AND status = ?`,
		deliverAfter, id, domain.DeferredPending,
	).Error
}

func (r *repo) InsertDeliveries(ctx context.Context, conn *gorm.DB, deliveries []domain.Delivery) error {
	for _, d := range deliveries {
		err := conn.WithContext(ctx).Exec(
			`INSERT INTO notification_deliveries (id, recipient_id, channel, category, payload, status, attempts, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID,
			d.RecipientID,
			d.Channel,
			d.Category,
			d.Payload,
			d.Status,
			d.Attempts,
			d.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListPendingDeliveries(ctx context.Context, conn *gorm.DB, limit int) ([]domain.Delivery, error) {
	var rows []domain.Delivery
	err := conn.WithContext(ctx).
		Raw(`SELECT id, recipient_id, channel, category, payload, status, attempts, last_error, created_at, sent_at
			FROM notification_deliveries
			WHERE status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?`, domain.DeliveryPending, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkDeliverySent(ctx context.Context, conn *gorm.DB, id snowflake.ID, sentAt time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE notification_deliveries SET status = ?, attempts = attempts + 1, sent_at = ?, last_error = NULL WHERE id = ?`,
		domain.DeliverySent, sentAt, id,
	).Error
}

func (r *repo) MarkDeliveryAttempt(ctx context.Context, conn *gorm.DB, id snowflake.ID, lastError string, failed bool) error {
	status := domain.DeliveryPending
	if failed {
		status = domain.DeliveryFailed
	}
	return conn.WithContext(ctx).Exec(
		`UPDATE notification_deliveries SET status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		status, lastError, id,
	).Error
}
