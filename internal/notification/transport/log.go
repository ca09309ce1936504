package transport

import (
	"context"

	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"go.uber.org/zap"
)

// Log writes deliveries to the logger. Used for channels with no configured backend.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("notification.transport")}
}

func (l *Log) Send(_ context.Context, msg domain.Message) error {
	l.log.Info("notification delivered to log",
		zap.String("delivery_id", msg.DeliveryID.String()),
		zap.String("recipient_id", msg.RecipientID.String()),
		zap.String("channel", string(msg.Channel)),
		zap.String("category", string(msg.Category)),
		zap.Any("title", msg.Payload["title"]),
	)
	return nil
}
