package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/memberline/memberline/internal/jobs"
	"github.com/memberline/memberline/internal/periods"
)

// SweepRunner executes one overdue period sweep.
type SweepRunner interface {
	Run(ctx context.Context) (periods.SweepReport, error)
}

// OverdueSweepJob wraps the sweeper for queue-driven execution.
type OverdueSweepJob struct {
	Runner  SweepRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverdueSweepJob initialises the overdue sweep handler.
func NewOverdueSweepJob(runner SweepRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{Runner: runner, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep run. Aggregated per-period failures have already
// rolled the sweep back; they surface here as a retryable job failure.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskOverdueSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting overdue period sweep",
		slog.Time("scheduled_for", payload.ScheduledFor))

	report, err := j.Runner.Run(ctx)
	if err != nil {
		resultErr = err
		logger.Error("overdue period sweep failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddSweepResults(report.Disabled, report.Adjusted)
	logger.Info("completed overdue period sweep",
		slog.Int("disabled", report.Disabled),
		slog.Int("adjusted", report.Adjusted),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueSweep))
	}
	return slog.Default().With(slog.String("job", TaskOverdueSweep))
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
