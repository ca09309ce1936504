package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.Called(ctx, to, subject, htmlBody).Error(0)
}

func (m *providerMock) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	return m.Called(ctx, to, templateName, data).Error(0)
}

type contactsStub struct {
	emails map[snowflake.ID]string
}

func (c contactsStub) ContactEmail(_ context.Context, id snowflake.ID) (string, error) {
	return c.emails[id], nil
}

func message(channel domain.Channel) domain.Message {
	return domain.Message{
		DeliveryID:  42,
		RecipientID: 7,
		Channel:     channel,
		Category:    domain.CategoryCountryHealth,
		Payload:     map[string]any{"title": "CI is struggling", "country_code": "CI"},
	}
}

func TestRouterUnknownChannel(t *testing.T) {
	err := NewRouter().Send(context.Background(), message(domain.ChannelPush))
	assert.ErrorIs(t, err, domain.ErrTransportNotWired)
}

func TestRouterDispatchesByChannel(t *testing.T) {
	router := NewRouter().Handle(domain.ChannelInApp, NewLog(zap.NewNop()))
	assert.NoError(t, router.Send(context.Background(), message(domain.ChannelInApp)))
}

func TestEmailRendersAlertTemplate(t *testing.T) {
	provider := &providerMock{}
	provider.On("SendTemplate", mock.Anything, []string{"ops@example.com"}, "alert", mock.MatchedBy(func(data map[string]any) bool {
		return data["subject"] == "[AdminWatch] CI is struggling" && data["country_code"] == "CI"
	})).Return(nil).Once()

	transport := NewEmail(provider, contactsStub{emails: map[snowflake.ID]string{7: "ops@example.com"}})

	require.NoError(t, transport.Send(context.Background(), message(domain.ChannelEmail)))
	provider.AssertExpectations(t)
}

func TestPublisherWithoutConnection(t *testing.T) {
	err := NewPublisher(nil, "").Send(context.Background(), message(domain.ChannelPush))
	assert.ErrorIs(t, err, domain.ErrTransportNotWired)
}

func TestPublisherPublishesEnvelope(t *testing.T) {
	conn, err := nats.Connect(testutil.StartNATS(t))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	sub, err := conn.SubscribeSync("adminwatch.notifications.push")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	publisher := NewPublisher(conn, "adminwatch.notifications")
	require.NoError(t, publisher.Send(context.Background(), message(domain.ChannelPush)))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42", msg.Header.Get(nats.MsgIdHdr))

	var got envelope
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "7", got.RecipientID)
	assert.Equal(t, "push", got.Channel)
	assert.Equal(t, "CI is struggling", got.Payload["title"])
}
