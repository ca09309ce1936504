package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
)

// Publisher hands push and in-app notifications to the delivery network over NATS.
// Messages go to <subject>.<channel>.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

type envelope struct {
	DeliveryID  string         `json:"delivery_id"`
	RecipientID string         `json:"recipient_id"`
	Channel     string         `json:"channel"`
	Category    string         `json:"category"`
	Payload     map[string]any `json:"payload"`
	PublishedAt time.Time      `json:"published_at"`
}

func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "adminwatch.notifications"
	}
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) Subject(channel domain.Channel) string {
	return p.subject + "." + string(channel)
}

func (p *Publisher) Send(ctx context.Context, msg domain.Message) error {
	if p.conn == nil {
		return fmt.Errorf("%w: nats", domain.ErrTransportNotWired)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(envelope{
		DeliveryID:  msg.DeliveryID.String(),
		RecipientID: msg.RecipientID.String(),
		Channel:     string(msg.Channel),
		Category:    string(msg.Category),
		Payload:     msg.Payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	out := nats.NewMsg(p.Subject(msg.Channel))
	out.Data = data
	out.Header.Set(nats.MsgIdHdr, msg.DeliveryID.String())
	return p.conn.PublishMsg(out)
}
