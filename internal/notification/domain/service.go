package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
)

var (
	ErrNotOwner          = fmt.Errorf("%w: preference_owner_mismatch", apperror.ErrUnauthorized)
	ErrVersionConflict   = fmt.Errorf("%w: preference_version_conflict", apperror.ErrConflict)
	ErrInvalidTimezone   = fmt.Errorf("%w: invalid_timezone", apperror.ErrValidationFailed)
	ErrInvalidCategory   = fmt.Errorf("%w: invalid_category", apperror.ErrValidationFailed)
	ErrInvalidCountry    = fmt.Errorf("%w: invalid_country_code", apperror.ErrValidationFailed)
	ErrVersionRequired   = fmt.Errorf("%w: version_required", apperror.ErrValidationFailed)
	ErrInvalidEvent      = fmt.Errorf("%w: invalid_event", apperror.ErrValidationFailed)
	ErrTransportFailed   = fmt.Errorf("%w: delivery_failed", apperror.ErrTransportUnavailable)
	ErrTransportNotWired = fmt.Errorf("%w: channel_not_configured", apperror.ErrTransportUnavailable)
)

// UpdatePreferenceRequest is a partial update. Version must echo the version
// the caller last read. ClearMonitored resets MonitoredCountries to "all".
type UpdatePreferenceRequest struct {
	Version            int64           `json:"version"`
	Email              *bool           `json:"email"`
	Push               *bool           `json:"push"`
	InApp              *bool           `json:"in_app"`
	Categories         map[string]bool `json:"categories"`
	QuietHoursEnabled  *bool           `json:"quiet_hours_enabled"`
	QuietStart         *string         `json:"quiet_start"`
	QuietEnd           *string         `json:"quiet_end"`
	Timezone           *string         `json:"timezone"`
	MonitoredCountries *[]string       `json:"monitored_countries"`
	ClearMonitored     bool            `json:"clear_monitored_countries"`
}

type DispatchSummary struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Deferred   int `json:"deferred"`
	Dropped    int `json:"dropped"`
}

type Service interface {
	GetPreferences(ctx context.Context, actorID, adminID snowflake.ID) (*Preference, error)
	UpdatePreferences(ctx context.Context, actorID, adminID snowflake.ID, req UpdatePreferenceRequest) (*Preference, error)

	// Dispatch routes event to each recipient independently. Routing never
	// waits on transport.
	Dispatch(ctx context.Context, event Event) (DispatchSummary, error)
	// ReleaseDue re-routes deferred instructions whose deliver_after has passed.
	ReleaseDue(ctx context.Context, now time.Time) (DispatchSummary, error)
}

// Message is what a transport receives for one outbox row.
type Message struct {
	DeliveryID  snowflake.ID
	RecipientID snowflake.ID
	Channel     Channel
	Category    Category
	Payload     map[string]any
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}
