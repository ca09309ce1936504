package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Audit action types written by the admin surface.
const (
	ActionSuspend             = "suspend"
	ActionUnsuspend           = "unsuspend"
	ActionDelete              = "delete"
	ActionUpdateRole          = "updateRole"
	ActionAssignCountries     = "assignCountries"
	ActionThresholdRuleCreate = "threshold_rule.create"
	ActionThresholdRuleUpdate = "threshold_rule.update"
	ActionThresholdRuleToggle = "threshold_rule.toggle"
	ActionThresholdRuleDelete = "threshold_rule.delete"
	ActionPreferenceUpdate    = "notification_preference.update"
)

const (
	TargetAccount                = "account"
	TargetThresholdRule          = "threshold_rule"
	TargetNotificationPreference = "notification_preference"
)

// AuditLog is an append-only record of a privileged action.
type AuditLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID     snowflake.ID      `gorm:"column:actor_id" json:"actor_id"`
	ActionType  string            `gorm:"column:action_type" json:"action_type"`
	TargetType  string            `gorm:"column:target_type" json:"target_type"`
	TargetID    string            `gorm:"column:target_id" json:"target_id"`
	Description string            `gorm:"column:description" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt   time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is the caller-supplied part of an audit record.
type Entry struct {
	ActorID     snowflake.ID
	ActionType  string
	TargetType  string
	TargetID    string
	Description string
	Metadata    map[string]any
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	ActionType string
	TargetType string
	TargetID   string
	ActorID    snowflake.ID
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
