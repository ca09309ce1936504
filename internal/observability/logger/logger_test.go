package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "admin", "42")
	ctx = obscontext.WithCountry(ctx, "bj")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "admin", fields["actor_type"])
		assert.Equal(t, "42", fields["actor_id"])
		assert.Equal(t, "BJ", fields["country_code"])
		_, hasTrace := fields["trace_id"]
		assert.False(t, hasTrace)
	}
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("  update country_health_statuses set x = 1"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
