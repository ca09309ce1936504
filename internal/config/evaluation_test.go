package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvaluationConfigHolderFallsBackToEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewEvaluationConfigHolder(Config{
		Evaluation: EvaluationConfig{
			Interval:    time.Minute,
			Concurrency: 2,
			JobTimeout:  10 * time.Second,
			LockTTL:     5 * time.Second,
		},
	}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.JobEnabled("evaluate_countries"))
}

func TestEvaluationConfigRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := NewEvaluationConfigHolder(Config{
		Evaluation: EvaluationConfig{Interval: 0, Concurrency: 1, JobTimeout: time.Second},
	}, zap.NewNop())
	assert.Error(t, err)
}

func TestJobEnabledFilters(t *testing.T) {
	cfg := EvaluationConfig{EnabledJobs: []string{"release_deferred_notifications"}}
	assert.False(t, cfg.JobEnabled("evaluate_countries"))
	assert.True(t, cfg.JobEnabled("RELEASE_DEFERRED_NOTIFICATIONS"))
}
