package repositories

import (
	"context"
	"time"

	"stratus/internal/domain/models"
)

// JobExecutionRepository persists the append-only checkpoint log. One row per
// run; rows are finalized exactly once and never updated afterwards.
type JobExecutionRepository interface {
	// Start inserts a RUNNING row for this run and returns it.
	Start(ctx context.Context, jobName string, startedAt time.Time, metadata map[string]any) (*models.JobExecution, error)

	// Complete finalizes a run as COMPLETED.
	Complete(ctx context.Context, id string, at time.Time) error

	// Fail finalizes a run as FAILED with the error message.
	Fail(ctx context.Context, id string, at time.Time, errorMessage string) error

	// LastCompleted returns the most recent COMPLETED run for the job name by
	// descending started_at, or nil if the job never completed.
	LastCompleted(ctx context.Context, jobName string) (*models.JobExecution, error)
}
