package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonForbidden            = "forbidden"
	JobReasonConflict             = "conflict"
	JobReasonTransport            = "transport_unavailable"
	JobReasonUnknown              = "unknown"
)

const (
	DecisionDeliverNow = "deliver_now"
	DecisionDeferred   = "deferred"
	DecisionSuppressed = "suppressed"
)

var healthStatuses = []string{"healthy", "warning", "critical"}

// EvaluationMetrics captures threshold evaluation and alert routing signals.
type EvaluationMetrics struct {
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobTimeouts       *prometheus.CounterVec
	jobErrors         *prometheus.CounterVec
	itemsProcessed    *prometheus.CounterVec
	runLoopLag        prometheus.Observer
	healthTransitions *prometheus.CounterVec
	verdicts          *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	casConflicts      prometheus.Counter
	transitionCounts  map[string]map[string]prometheus.Counter
}

var (
	evaluationMetricsOnce sync.Once
	evaluationMetrics     *EvaluationMetrics
)

// Evaluation returns the singleton evaluation metrics registry.
func Evaluation() *EvaluationMetrics {
	return EvaluationWithConfig(Config{})
}

// EvaluationWithConfig returns the singleton evaluation metrics registry using config labels.
func EvaluationWithConfig(cfg Config) *EvaluationMetrics {
	evaluationMetricsOnce.Do(func() {
		evaluationMetrics = newEvaluationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return evaluationMetrics
}

// ResetEvaluationMetricsForTest resets the singleton so tests can swap registries.
func ResetEvaluationMetricsForTest() {
	evaluationMetricsOnce = sync.Once{}
	evaluationMetrics = nil
}

func newEvaluationMetrics(registerer prometheus.Registerer, cfg Config) *EvaluationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "adminwatch"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_evaluation_job_runs_total",
		Help:        "Evaluation job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "adminwatch_evaluation_job_duration_seconds",
		Help:        "Evaluation job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_evaluation_job_timeouts_total",
		Help:        "Evaluation jobs that exceeded their soft timeout.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_evaluation_job_errors_total",
		Help:        "Evaluation job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	itemsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_evaluation_items_processed_total",
		Help:        "Items processed per job and resource.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "adminwatch_evaluation_runloop_lag_seconds",
		Help:        "Run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	healthTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_country_health_transitions_total",
		Help:        "Country health status transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_threshold_verdicts_total",
		Help:        "Threshold rule breaches by severity.",
		ConstLabels: constLabels,
	}, []string{"severity"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "adminwatch_notification_decisions_total",
		Help:        "Notification routing decisions by outcome and category.",
		ConstLabels: constLabels,
	}, []string{"decision", "category"})
	casConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "adminwatch_country_health_cas_conflicts_total",
		Help:        "Health status writes rejected by compare-and-set.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		itemsProcessed,
		runLoopLag,
		healthTransitions,
		verdicts,
		decisions,
		casConflicts,
	)

	transitionCounts := map[string]map[string]prometheus.Counter{}
	for _, from := range healthStatuses {
		row := map[string]prometheus.Counter{}
		for _, to := range healthStatuses {
			if from == to {
				continue
			}
			row[to] = healthTransitions.WithLabelValues(from, to)
		}
		transitionCounts[from] = row
	}

	return &EvaluationMetrics{
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
		jobTimeouts:       jobTimeouts,
		jobErrors:         jobErrors,
		itemsProcessed:    itemsProcessed,
		runLoopLag:        runLoopLag,
		healthTransitions: healthTransitions,
		verdicts:          verdicts,
		decisions:         decisions,
		casConflicts:      casConflicts,
		transitionCounts:  transitionCounts,
	}
}

func (m *EvaluationMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *EvaluationMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *EvaluationMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with a classified reason.
func (m *EvaluationMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *EvaluationMetrics) AddItemsProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.itemsProcessed == nil {
		return
	}
	m.itemsProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *EvaluationMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

func (m *EvaluationMetrics) IncHealthTransition(from, to string) {
	if m == nil || m.healthTransitions == nil {
		return
	}
	if row, ok := m.transitionCounts[from]; ok {
		if counter, ok := row[to]; ok {
			counter.Inc()
			return
		}
	}
	m.healthTransitions.WithLabelValues(from, to).Inc()
}

func (m *EvaluationMetrics) IncVerdict(severity string) {
	if m == nil || m.verdicts == nil {
		return
	}
	m.verdicts.WithLabelValues(severity).Inc()
}

func (m *EvaluationMetrics) IncDecision(decision, category string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(decision, category).Inc()
}

func (m *EvaluationMetrics) IncCASConflict() {
	if m == nil || m.casConflicts == nil {
		return
	}
	m.casConflicts.Inc()
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case errors.Is(err, authorization.ErrForbidden):
		return JobReasonForbidden
	case hasPGCode(err, "55P03"):
		return JobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return JobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return JobReasonUniqueViolation
	case errors.Is(err, apperror.ErrConflict):
		return JobReasonConflict
	case errors.Is(err, apperror.ErrTransportUnavailable):
		return JobReasonTransport
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
