package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "inApp"
)

type Category string

const (
	CategoryCountryHealth     Category = "country_health"
	CategoryCountryRecovery   Category = "country_recovery"
	CategoryBusinessThreshold Category = "business_threshold"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCountryHealth, CategoryCountryRecovery, CategoryBusinessThreshold:
		return true
	}
	return false
}

// Event is an alert produced by evaluation. RecipientIDs pins explicit
// recipients; when empty every active admin whose scope covers CountryCode
// receives it.
type Event struct {
	ID           string         `json:"id"`
	Category     Category       `json:"category"`
	CountryCode  string         `json:"country_code"`
	Severity     string         `json:"severity,omitempty"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	RecipientIDs []snowflake.ID `json:"recipient_ids,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Preference controls how one recipient is notified. A nil MonitoredCountries
// means every country in scope; a missing category key means enabled.
type Preference struct {
	AdminID            snowflake.ID    `json:"admin_id"`
	Email              bool            `json:"email"`
	Push               bool            `json:"push"`
	InApp              bool            `json:"in_app"`
	Categories         map[string]bool `json:"categories"`
	QuietHoursEnabled  bool            `json:"quiet_hours_enabled"`
	QuietStart         string          `json:"quiet_start"`
	QuietEnd           string          `json:"quiet_end"`
	Timezone           string          `json:"timezone"`
	MonitoredCountries []string        `json:"monitored_countries"`
	Version            int64           `json:"version"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

const (
	DefaultQuietStart = "22:00"
	DefaultQuietEnd   = "08:00"
	DefaultTimezone   = "UTC"
)

func DefaultPreference(adminID snowflake.ID) Preference {
	return Preference{
		AdminID:    adminID,
		Email:      true,
		Push:       true,
		InApp:      true,
		Categories: map[string]bool{},
		QuietStart: DefaultQuietStart,
		QuietEnd:   DefaultQuietEnd,
		Timezone:   DefaultTimezone,
	}
}

func (p Preference) CategoryEnabled(category Category) bool {
	enabled, ok := p.Categories[string(category)]
	return !ok || enabled
}

// Channels returns the enabled channels in a fixed order.
func (p Preference) Channels() []Channel {
	var channels []Channel
	if p.Email {
		channels = append(channels, ChannelEmail)
	}
	if p.Push {
		channels = append(channels, ChannelPush)
	}
	if p.InApp {
		channels = append(channels, ChannelInApp)
	}
	return channels
}

type DeferredStatus string

const (
	DeferredPending  DeferredStatus = "pending"
	DeferredReleased DeferredStatus = "released"
	DeferredDropped  DeferredStatus = "dropped"
)

type Deferred struct {
	ID           snowflake.ID              `json:"id"`
	RecipientID  snowflake.ID              `json:"recipient_id"`
	Event        datatypes.JSONType[Event] `json:"event"`
	DeliverAfter time.Time                 `json:"deliver_after"`
	Status       DeferredStatus            `json:"status"`
	CreatedAt    time.Time                 `json:"created_at"`
	ReleasedAt   *time.Time                `json:"released_at"`
}

func (Deferred) TableName() string { return "deferred_notifications" }

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery is an outbox row handed to a transport.
type Delivery struct {
	ID          snowflake.ID      `json:"id"`
	RecipientID snowflake.ID      `json:"recipient_id"`
	Channel     Channel           `json:"channel"`
	Category    Category          `json:"category"`
	Payload     datatypes.JSONMap `json:"payload"`
	Status      DeliveryStatus    `json:"status"`
	Attempts    int               `json:"attempts"`
	LastError   *string           `json:"last_error"`
	CreatedAt   time.Time         `json:"created_at"`
	SentAt      *time.Time        `json:"sent_at"`
}

func (Delivery) TableName() string { return "notification_deliveries" }
