package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: JobReasonDeadlineExceeded},
		{name: "forbidden", err: authorization.ErrForbidden, want: JobReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: JobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: JobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: JobReasonUniqueViolation},
		{name: "conflict", err: fmt.Errorf("%w: stale_version", apperror.ErrConflict), want: JobReasonConflict},
		{name: "transport", err: apperror.ErrTransportUnavailable, want: JobReasonTransport},
		{name: "unknown", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestHealthTransitionCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newEvaluationMetrics(registry, Config{ServiceName: "adminwatch", Environment: "test"})

	m.IncHealthTransition("normal", "critical")
	m.IncHealthTransition("normal", "critical")
	m.IncHealthTransition("critical", "normal")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.healthTransitions.WithLabelValues("normal", "critical")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.healthTransitions.WithLabelValues("critical", "normal")))
}

func TestAddItemsProcessedIgnoresEmptyBatches(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newEvaluationMetrics(registry, Config{})

	m.AddItemsProcessed("evaluate_countries", "countries", 0)
	m.AddItemsProcessed("evaluate_countries", "countries", 4)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.itemsProcessed.WithLabelValues("evaluate_countries", "countries")))
}

func TestNilEvaluationMetricsIsSafe(t *testing.T) {
	var m *EvaluationMetrics
	assert.NotPanics(t, func() {
		m.IncJobRun("x")
		m.IncJobError("x", errors.New("boom"))
		m.IncHealthTransition("normal", "warning")
		m.IncDecision(DecisionDeferred, "country_health")
	})
}
