package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists preferences, deferred instructions and the delivery
// outbox. Finders return (nil, nil) when no row matches.
type Repository interface {
	FindPreference(ctx context.Context, db *gorm.DB, adminID snowflake.ID) (*Preference, error)
	InsertPreference(ctx context.Context, db *gorm.DB, pref *Preference) error
	// UpdatePreference writes pref when the stored version equals expectedVersion.
	UpdatePreference(ctx context.Context, db *gorm.DB, pref *Preference, expectedVersion int64) error

	InsertDeferred(ctx context.Context, db *gorm.DB, deferred *Deferred) error
	ListDueDeferred(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Deferred, error)
	MarkDeferred(ctx context.Context, db *gorm.DB, id snowflake.ID, status DeferredStatus, at time.Time) error
	RescheduleDeferred(ctx context.Context, db *gorm.DB, id snowflake.ID, deliverAfter time.Time) error

	InsertDeliveries(ctx context.Context, db *gorm.DB, deliveries []Delivery) error
	ListPendingDeliveries(ctx context.Context, db *gorm.DB, limit int) ([]Delivery, error)
	MarkDeliverySent(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) error
	MarkDeliveryAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, failed bool) error
}
