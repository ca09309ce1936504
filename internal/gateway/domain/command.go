// Package domain describes privileged admin actions on marketplace accounts.
package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	"github.com/smallbiznis/adminwatch/internal/apperror"
)

type Action string

const (
	ActionSuspend         Action = "suspend"
	ActionUnsuspend       Action = "unsuspend"
	ActionDelete          Action = "delete"
	ActionUpdateRole      Action = "updateRole"
	ActionAssignCountries Action = "assignCountries"
)

func (a Action) Valid() bool {
	switch a {
	case ActionSuspend, ActionUnsuspend, ActionDelete, ActionUpdateRole, ActionAssignCountries:
		return true
	}
	return false
}

// RequiresReason reports whether the action must carry a justification.
func (a Action) RequiresReason() bool {
	return a != ActionUnsuspend
}

var (
	ErrInvalidAction     = fmt.Errorf("%w: invalid_action", apperror.ErrValidationFailed)
	ErrReasonRequired    = fmt.Errorf("%w: reason_required", apperror.ErrValidationFailed)
	ErrInvalidRole       = fmt.Errorf("%w: invalid_role", apperror.ErrValidationFailed)
	ErrInvalidCountry    = fmt.Errorf("%w: invalid_country_code", apperror.ErrValidationFailed)
	ErrTargetRequired    = fmt.Errorf("%w: target_required", apperror.ErrValidationFailed)
	ErrSelfAction        = fmt.Errorf("%w: self_action_forbidden", apperror.ErrValidationFailed)
	ErrTargetNotAdmin    = fmt.Errorf("%w: target_not_admin", apperror.ErrValidationFailed)
	ErrTargetNotFound    = fmt.Errorf("%w: target_not_found", apperror.ErrNotFound)
	ErrTargetOutOfScope  = fmt.Errorf("%w: target_out_of_scope", apperror.ErrUnauthorized)
	ErrTargetPrivileged  = fmt.Errorf("%w: target_privileged", apperror.ErrUnauthorized)
	ErrTargetDeleted     = fmt.Errorf("%w: target_deleted", apperror.ErrConflict)
	ErrActionRateLimited = fmt.Errorf("%w: admin_action_rate_limited", apperror.ErrRateLimited)
)

// RequestMeta is copied into the audit entry.
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

type Command struct {
	ActorID      snowflake.ID            `json:"-"`
	Action       Action                  `json:"action"`
	TargetUserID snowflake.ID            `json:"target_user_id"`
	Reason       string                  `json:"reason,omitempty"`
	NewRole      admindomain.AccountRole `json:"new_role,omitempty"`
	Countries    []string                `json:"countries,omitempty"`
	Meta         RequestMeta             `json:"-"`
}

type Result struct {
	Success        bool         `json:"success"`
	AuditID        snowflake.ID `json:"audit_id"`
	AlreadyInState bool         `json:"already_in_state"`
}

// Gateway is the only entry point for privileged account mutations.
type Gateway interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}
