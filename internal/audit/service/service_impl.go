package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/clock"
	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
	"github.com/smallbiznis/adminwatch/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) (snowflake.ID, error) {
	if tx == nil {
		tx = s.db
	}
	row, err := s.build(ctx, entry)
	if err != nil {
		return 0, err
	}
	if err := s.repo.Insert(ctx, tx, row); err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Service) AuditLog(ctx context.Context, entry auditdomain.Entry) (snowflake.ID, error) {
	id, err := s.Record(ctx, s.db, entry)
	if err != nil {
		s.log.Warn("failed to write audit log", zap.String("action_type", entry.ActionType), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (s *Service) build(ctx context.Context, entry auditdomain.Entry) (*auditdomain.AuditLog, error) {
	action := strings.TrimSpace(entry.ActionType)
	if action == "" {
		return nil, auditdomain.ErrInvalidAction
	}
	if entry.ActorID == 0 {
		return nil, auditdomain.ErrInvalidActor
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if ip, userAgent := obscontext.ClientFromContext(ctx); ip != "" || userAgent != "" {
		if ip != "" {
			payload["ip_address"] = ip
		}
		if userAgent != "" {
			payload["user_agent"] = userAgent
		}
	}

	return &auditdomain.AuditLog{
		ID:          s.genID.Generate(),
		ActorID:     entry.ActorID,
		ActionType:  action,
		TargetType:  targetType,
		TargetID:    strings.TrimSpace(entry.TargetID),
		Description: strings.TrimSpace(entry.Description),
		Metadata:    datatypes.JSONMap(payload),
		CreatedAt:   s.clock.Now().UTC(),
	}, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, createdAt, err := decoded.Position()
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: snowflake.ID(id), CreatedAt: createdAt}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		ActionType: req.ActionType,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorID:    req.ActorID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	page, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.NewCursor(int64(item.ID), item.CreatedAt)
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

