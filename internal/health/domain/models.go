package domain

import (
	"context"
	"slices"
	"time"

	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"gorm.io/gorm"
)

type State string

const (
	StateHealthy  State = "healthy"
	StateWarning  State = "warning"
	StateCritical State = "critical"
)

func stateFor(severity thresholddomain.Severity) State {
	switch severity {
	case thresholddomain.SeverityCritical:
		return StateCritical
	case thresholddomain.SeverityWarning:
		return StateWarning
	default:
		return StateHealthy
	}
}

// Rank orders states by severity.
func (s State) Rank() int {
	switch s {
	case StateCritical:
		return 2
	case StateWarning:
		return 1
	default:
		return 0
	}
}

// Status is the persisted health of one country. A zero Status with an empty
// LastStatusChange means no row exists yet.
type Status struct {
	CountryCode       string     `json:"country_code"`
	State             State      `json:"state"`
	StrugglingSince   *time.Time `json:"struggling_since"`
	LastStatusChange  time.Time  `json:"last_status_change"`
	TriggeringMetrics []string   `json:"triggering_metrics"`
	TriggeringRuleIDs []string   `json:"triggering_rule_ids"`

	// PendingAlert is the latest transition whose admin alert has not been
	// handed to the notifier yet. It is stored with the status row so a failed
	// dispatch is retried on the next cycle.
	PendingAlert *TransitionEvent `json:"-"`
}

func (s Status) IsStruggling() bool {
	return s.State == StateWarning || s.State == StateCritical
}

// Persisted reports whether the status was loaded from a stored row.
func (s Status) Persisted() bool {
	return !s.LastStatusChange.IsZero()
}

func (s Status) SameAs(other Status) bool {
	return s.State == other.State &&
		slices.Equal(s.TriggeringMetrics, other.TriggeringMetrics) &&
		slices.Equal(s.TriggeringRuleIDs, other.TriggeringRuleIDs)
}

// TransitionEvent is emitted only when a country's state actually changes.
type TransitionEvent struct {
	CountryCode       string     `json:"country_code"`
	From              State      `json:"from"`
	To                State      `json:"to"`
	TriggeringMetrics []string   `json:"triggering_metrics"`
	StrugglingSince   *time.Time `json:"struggling_since,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

func (e TransitionEvent) Recovery() bool {
	return e.To == StateHealthy
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, countryCode string) (*Status, error)
	// CompareAndSet inserts when expectedLastChange is nil and otherwise
	// updates only if the stored last_status_change still matches. A lost race
	// returns ErrStaleStatus.
	CompareAndSet(ctx context.Context, db *gorm.DB, next Status, expectedLastChange *time.Time) error
	ListStruggling(ctx context.Context, db *gorm.DB) ([]Status, error)
	// ClearPendingAlert drops the pending alert unless the status has moved on
	// from lastStatusChange.
	ClearPendingAlert(ctx context.Context, db *gorm.DB, countryCode string, lastStatusChange time.Time) error
}

type ApplyResult struct {
	Status Status
	Event  *TransitionEvent
	// PendingAlert is set when this cycle owns the country and a transition
	// alert is still outstanding, whether from this cycle or an earlier one.
	PendingAlert *TransitionEvent
	Written      bool
	Stale        bool
}

type Service interface {
	// Apply runs one decide-and-store cycle for a country. Verdicts must be the
	// complete set for the cycle.
	Apply(ctx context.Context, countryCode string, verdicts []thresholddomain.Verdict) (ApplyResult, error)
	ListStruggling(ctx context.Context, countries []string) ([]Status, error)
	Get(ctx context.Context, countryCode string) (Status, error)
	// ResolveAlert marks the pending alert of status as handled.
	ResolveAlert(ctx context.Context, status Status) error
}
