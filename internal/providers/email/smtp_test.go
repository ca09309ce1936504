package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTemplateRendersAlert(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "alerts@adminwatch.local"})

	var gotAddr string
	var gotMsg []byte
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"ops@example.com"}, to)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ops@example.com"}, "alert", map[string]any{
		"subject":      "CI is struggling",
		"title":        "Country health changed",
		"body":         "Revenue dropped",
		"country_code": "CI",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: CI is struggling")
	assert.Contains(t, string(gotMsg), "<strong>CI</strong>")
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 25})
	assert.Error(t, p.Send(context.Background(), nil, "s", "b"))
}
