package reconcile

import (
	"context"
	"fmt"
)

// CaptureJob adapts the sweeper to the cron worker's job contract so the
// scheduled run and the operator trigger share one code path.
type CaptureJob struct {
	sweeper *Sweeper
}

// NewCaptureJob wraps the sweeper for scheduled execution.
func NewCaptureJob(sweeper *Sweeper) (*CaptureJob, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &CaptureJob{sweeper: sweeper}, nil
}

// Name identifies the job in logs, locks, and metrics.
func (j *CaptureJob) Name() string {
	return "bulk-capture"
}

// Run executes one sweep. Per-order failures stay in the summary; only a
// sweep that could not record its results errors the job.
func (j *CaptureJob) Run(ctx context.Context) error {
	_, err := j.sweeper.Run(ctx)
	return err
}
