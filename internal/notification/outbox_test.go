package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/internal/notification/repository"
	"github.com/smallbiznis/adminwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (r *recordingTransport) Send(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newOutbox(t *testing.T, transport domain.Transport) (*gorm.DB, *Outbox) {
	t.Helper()
	db := testutil.OpenDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	outbox := NewOutbox(OutboxParams{
		DB:  db,
		Log: zap.NewNop(),
		Config: config.Config{Outbox: config.OutboxConfig{
			Workers:       2,
			BatchSize:     10,
			PollInterval:  time.Hour,
			RatePerSecond: 1000,
			MaxAttempts:   2,
		}},
		Clock:     clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)),
		Repo:      repository.Provide(),
		Transport: transport,
	})
	return db, outbox
}

func seedDeliveries(t *testing.T, db *gorm.DB, channels ...domain.Channel) {
	t.Helper()
	created := time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC)
	var deliveries []domain.Delivery
	for i, channel := range channels {
		deliveries = append(deliveries, domain.Delivery{
			ID:          snowflake.ID(1000 + i),
			RecipientID: 1,
			Channel:     channel,
			Category:    domain.CategoryCountryHealth,
			Payload:     datatypes.JSONMap{"title": "CI is struggling"},
			Status:      domain.DeliveryPending,
			CreatedAt:   created,
		})
	}
	require.NoError(t, repository.Provide().InsertDeliveries(context.Background(), db, deliveries))
}

func statusCount(t *testing.T, db *gorm.DB, status domain.DeliveryStatus) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM notification_deliveries WHERE status = ?`, status).Scan(&count).Error)
	return count
}

func TestOutboxDrainSendsPending(t *testing.T) {
	transport := &recordingTransport{}
	db, outbox := newOutbox(t, transport)
	seedDeliveries(t, db, domain.ChannelEmail, domain.ChannelPush, domain.ChannelInApp)

	sent, err := outbox.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, transport.sent, 3)
	assert.EqualValues(t, 3, statusCount(t, db, domain.DeliverySent))

	sent, err = outbox.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestOutboxRetriesThenFails(t *testing.T) {
	transport := &recordingTransport{err: errors.New("smtp: connection refused")}
	db, outbox := newOutbox(t, transport)
	seedDeliveries(t, db, domain.ChannelEmail)

	sent, err := outbox.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.EqualValues(t, 1, statusCount(t, db, domain.DeliveryPending))

	_, err = outbox.Drain(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, statusCount(t, db, domain.DeliveryFailed))

	var lastError string
	require.NoError(t, db.Raw(`SELECT last_error FROM notification_deliveries WHERE id = 1000`).Scan(&lastError).Error)
	assert.Contains(t, lastError, "connection refused")
}

func TestOutboxUnwiredChannelFailsImmediately(t *testing.T) {
	transport := &recordingTransport{err: domain.ErrTransportNotWired}
	db, outbox := newOutbox(t, transport)
	seedDeliveries(t, db, domain.ChannelPush)

	_, err := outbox.Drain(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, statusCount(t, db, domain.DeliveryFailed))
}

func TestOutboxStartStop(t *testing.T) {
	_, outbox := newOutbox(t, &recordingTransport{})
	outbox.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, outbox.Stop(ctx))
}
