package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/memberline/memberline/internal/periods"
)

type fakeRunner struct {
	report periods.SweepReport
	err    error
	runs   int
}

func (f *fakeRunner) Run(ctx context.Context) (periods.SweepReport, error) {
	f.runs++
	return f.report, f.err
}

func TestOverdueSweepJobHandle(t *testing.T) {
	runner := &fakeRunner{report: periods.SweepReport{Disabled: 2, Adjusted: 1}}
	job := NewOverdueSweepJob(runner, nil, nil)

	task, err := NewOverdueSweepTask(time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, runner.runs)
}

func TestOverdueSweepJobPropagatesFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("sweep broke")}
	job := NewOverdueSweepJob(runner, nil, nil)

	task, err := NewOverdueSweepTask(time.Now().UTC())
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.EqualError(t, err, "sweep broke")
}

func TestOverdueSweepJobSkipsRetryOnBadPayload(t *testing.T) {
	runner := &fakeRunner{}
	job := NewOverdueSweepJob(runner, nil, nil)

	task := asynq.NewTask(TaskOverdueSweep, []byte("{"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, runner.runs)
}

func TestOverdueSweepJobNotConfigured(t *testing.T) {
	job := &OverdueSweepJob{}
	task, err := NewOverdueSweepTask(time.Now().UTC())
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
