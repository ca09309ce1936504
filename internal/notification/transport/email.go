package transport

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/internal/providers/email"
)

const alertTemplate = "alert"

// ContactResolver maps a recipient id to an email address.
type ContactResolver interface {
	ContactEmail(ctx context.Context, recipientID snowflake.ID) (string, error)
}

// Email renders the alert template and sends it to the recipient's contact address.
type Email struct {
	provider email.Provider
	contacts ContactResolver
}

func NewEmail(provider email.Provider, contacts ContactResolver) *Email {
	return &Email{provider: provider, contacts: contacts}
}

func (e *Email) Send(ctx context.Context, msg domain.Message) error {
	address, err := e.contacts.ContactEmail(ctx, msg.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	data := make(map[string]any, len(msg.Payload)+1)
	for key, value := range msg.Payload {
		data[key] = value
	}
	if title, ok := data["title"].(string); ok && title != "" {
		data["subject"] = "[AdminWatch] " + title
	}
	return e.provider.SendTemplate(ctx, []string{address}, alertTemplate, data)
}
