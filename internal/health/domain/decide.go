package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/smallbiznis/adminwatch/internal/apperror"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
)

var ErrStaleStatus = fmt.Errorf("%w: stale_health_status", apperror.ErrConflict)

// Decide computes the next status for one cycle. Only country-level breaching
// verdicts count; the most severe one selects the state. The returned event is
// nil unless the state changed. Entry and recovery both take effect within a
// single cycle, and every new struggling episode starts a fresh StrugglingSince.
func Decide(prev Status, verdicts []thresholddomain.Verdict, now time.Time) (Status, *TransitionEvent) {
	prevState := prev.State
	if prevState == "" {
		prevState = StateHealthy
	}

	worst := thresholddomain.SeverityNone
	metrics := map[string]struct{}{}
	rules := map[string]struct{}{}
	for _, v := range verdicts {
		if !v.CountryLevel() || !v.Severity.Breaching() {
			continue
		}
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
		metrics[string(v.MetricType)] = struct{}{}
		rules[v.RuleID.String()] = struct{}{}
	}

	next := Status{
		CountryCode:       prev.CountryCode,
		State:             stateFor(worst),
		StrugglingSince:   prev.StrugglingSince,
		LastStatusChange:  prev.LastStatusChange,
		TriggeringMetrics: sortedKeys(metrics),
		TriggeringRuleIDs: sortedKeys(rules),
		PendingAlert:      prev.PendingAlert,
	}
	normalizedPrev := prev
	normalizedPrev.State = prevState

	if next.SameAs(normalizedPrev) {
		return prev, nil
	}
	if next.State == prevState {
		// Same severity with a different set of breaching metrics.
		return next, nil
	}

	switch {
	case next.State == StateHealthy:
		next.StrugglingSince = nil
	case prevState == StateHealthy:
		since := now
		next.StrugglingSince = &since
	}
	next.LastStatusChange = now

	event := &TransitionEvent{
		CountryCode:       next.CountryCode,
		From:              prevState,
		To:                next.State,
		TriggeringMetrics: append([]string(nil), next.TriggeringMetrics...),
		StrugglingSince:   next.StrugglingSince,
		OccurredAt:        now,
	}
	// A newer transition supersedes any alert still pending.
	pending := *event
	next.PendingAlert = &pending
	return next, event
}

// SortStruggling orders statuses critical first, then by the oldest episode,
// then by country code.
func SortStruggling(statuses []Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i], statuses[j]
		if a.State.Rank() != b.State.Rank() {
			return a.State.Rank() > b.State.Rank()
		}
		as, bs := sinceOrZero(a), sinceOrZero(b)
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		return a.CountryCode < b.CountryCode
	})
}

func sinceOrZero(s Status) time.Time {
	if s.StrugglingSince == nil {
		return time.Time{}
	}
	return *s.StrugglingSince
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
