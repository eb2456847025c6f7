package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/memberline/memberline/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep triggers the overdue period sweep.
	TaskOverdueSweep = "periods:overdue_sweep"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverdueSweepPayload carries scheduling metadata for a sweep run.
type OverdueSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}
