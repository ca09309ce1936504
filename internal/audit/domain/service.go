package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	ActionType string
	TargetType string
	TargetID   string
	ActorID    snowflake.ID
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record inserts inside the caller's transaction. Errors are returned
	// unchanged so the caller's transaction aborts.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (snowflake.ID, error)
	// AuditLog writes a standalone entry outside any caller transaction.
	AuditLog(ctx context.Context, entry Entry) (snowflake.ID, error)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = fmt.Errorf("%w: invalid_page_token", apperror.ErrValidationFailed)
	ErrInvalidTimeRange = fmt.Errorf("%w: invalid_time_range", apperror.ErrValidationFailed)
	ErrInvalidAction    = fmt.Errorf("%w: invalid_action", apperror.ErrValidationFailed)
	ErrInvalidActor     = fmt.Errorf("%w: invalid_actor", apperror.ErrValidationFailed)
)
