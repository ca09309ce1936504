package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type OutboxParams struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Repo      domain.Repository
	Transport domain.Transport
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Outbox drains pending deliveries to transports. Transport failures never
// reach the routing path; they are retried until MaxAttempts.
type Outbox struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	transport domain.Transport
	metrics   *obsmetrics.Metrics
	limiter   *rate.Limiter

	workers      int
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutbox(p OutboxParams) *Outbox {
	cfg := p.Config.Outbox
	o := &Outbox{
		db:           p.DB,
		log:          p.Log.Named("notification.outbox"),
		clock:        p.Clock,
		repo:         p.Repo,
		transport:    p.Transport,
		metrics:      p.Metrics,
		limiter:      rate.NewLimiter(rate.Limit(positiveFloat(cfg.RatePerSecond, 20)), positive(cfg.Workers, 4)),
		workers:      positive(cfg.Workers, 4),
		batchSize:    positive(cfg.BatchSize, 50),
		pollInterval: cfg.PollInterval,
		maxAttempts:  positive(cfg.MaxAttempts, 5),
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 5 * time.Second
	}

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				o.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return o.Stop(ctx)
			},
		})
	}
	return o
}

func (o *Outbox) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.loop(ctx)
	}()
	o.log.Info("outbox started", zap.Int("workers", o.workers), zap.Duration("poll_interval", o.pollInterval))
}

func (o *Outbox) Stop(ctx context.Context) error {
	if o.cancel == nil {
		return nil
	}
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) loop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := o.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.log.Warn("outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain sends one batch of pending deliveries and returns how many were sent.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	pending, err := o.repo.ListPendingDeliveries(ctx, o.db, o.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		mu   sync.Mutex
		sent int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, delivery := range pending {
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				return err
			}
			ok, err := o.deliver(gctx, delivery)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				sent++
				mu.Unlock()
			}
			return nil
		})
	}
	err = g.Wait()
	obsmetrics.Evaluation().AddItemsProcessed("notification_outbox", "deliveries", sent)
	return sent, err
}

// deliver returns an error only when the outbox row could not be updated.
func (o *Outbox) deliver(ctx context.Context, delivery domain.Delivery) (bool, error) {
	sendErr := o.transport.Send(ctx, domain.Message{
		DeliveryID:  delivery.ID,
		RecipientID: delivery.RecipientID,
		Channel:     delivery.Channel,
		Category:    delivery.Category,
		Payload:     delivery.Payload,
	})
	if sendErr == nil {
		o.metrics.RecordNotificationSent(ctx, string(delivery.Channel), string(delivery.Category))
		return true, o.repo.MarkDeliverySent(ctx, o.db, delivery.ID, o.clock.Now())
	}

	failed := delivery.Attempts+1 >= o.maxAttempts || errors.Is(sendErr, domain.ErrTransportNotWired)
	o.metrics.RecordNotificationFailed(ctx, string(delivery.Channel), failureReason(sendErr))
	o.log.Warn("notification delivery failed",
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("recipient_id", delivery.RecipientID.String()),
		zap.String("channel", string(delivery.Channel)),
		zap.Int("attempt", delivery.Attempts+1),
		zap.Bool("final", failed),
		zap.Error(errors.Join(domain.ErrTransportFailed, sendErr)),
	)
	return false, o.repo.MarkDeliveryAttempt(ctx, o.db, delivery.ID, sendErr.Error(), failed)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransportNotWired):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport_error"
	}
}

func positive(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

func positiveFloat(value, def float64) float64 {
	if value <= 0 {
		return def
	}
	return value
}
