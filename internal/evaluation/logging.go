package evaluation

import (
	"context"
	"sync"
	"time"

	obscontext "github.com/smallbiznis/adminwatch/internal/observability/context"
	obslogger "github.com/smallbiznis/adminwatch/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	"github.com/smallbiznis/adminwatch/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	startedAt time.Time

	mu             sync.Mutex
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.processedCount += count
	r.mu.Unlock()
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()
}

func (r *jobRun) counts() (processed, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processedCount, r.errorCount
}

// ensureJobRun attaches a run to ctx unless one is already present. The run id
// doubles as the correlation id of every alert the run emits.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	ctx, runID := correlation.EnsureCorrelationID(ctx)
	run := &jobRun{
		job:       job,
		runID:     runID,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "evaluation")
	ctx = obscontext.WithRequestID(ctx, runID)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("evaluation.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	processed, errs := run.counts()
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", processed),
		zap.Int("error_count", errs),
	}
	log := s.logger(ctx)
	if errs > 0 {
		log.Warn("evaluation.job.finish", fields...)
		return
	}
	log.Info("evaluation.job.finish", fields...)
}

func (s *Scheduler) logJobError(ctx context.Context, run *jobRun, msg, countryCode string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	job := ""
	if run != nil {
		job = run.job
	}
	base := []zap.Field{
		zap.String("job", job),
		zap.String("country_code", countryCode),
		zap.String("error_type", obsmetrics.ClassifyJobReason(err)),
		zap.Error(err),
	}
	s.logger(ctx).Error(msg, append(base, fields...)...)
}
