package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("action", "suspend"),
		attribute.String("admin_id", "456"),
		attribute.String("country_code", "BJ"),
		attribute.String("channel", "email"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("action"))
	assert.Contains(t, keys, attribute.Key("channel"))
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordAdminAction(context.Background(), "suspend", "success")
		m.RecordNotificationSent(context.Background(), "push", "country_health")
	})
}
