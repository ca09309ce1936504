package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ingestTimeout = 10 * time.Second

// Subscriber upserts snapshots pushed by the metric collector on a NATS subject.
type Subscriber struct {
	svc domain.Service
	log *zap.Logger
	sub *nats.Subscription
}

type SubscriberParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Conn      *nats.Conn `optional:"true"`
	Service   domain.Service
	Log       *zap.Logger
}

// NewSubscriber returns nil when NATS or the ingest subject is not configured.
func NewSubscriber(p SubscriberParams) (*Subscriber, error) {
	subject := p.Config.NATS.SnapshotSubject
	if p.Conn == nil || subject == "" {
		return nil, nil
	}
	s := &Subscriber{svc: p.Service, log: p.Log.Named("snapshot.ingest")}

	sub, err := p.Conn.QueueSubscribe(subject, p.Config.NATS.SnapshotQueue, s.handle)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.sub.Drain()
		},
	})
	s.log.Info("snapshot ingest subscribed", zap.String("subject", subject))
	return s, nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	if msg == nil {
		return
	}
	if err := s.Handle(msg.Data); err != nil {
		level := s.log.Error
		if errors.Is(err, apperror.ErrValidationFailed) {
			level = s.log.Warn
		}
		level("snapshot ingest failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Handle decodes one JSON snapshot and stores it.
func (s *Subscriber) Handle(data []byte) error {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Join(domain.ErrInvalidValue, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	return s.svc.Ingest(ctx, snap)
}
