package models

import (
	"time"
)

// JobStatus is the outcome recorded for one reconciliation run.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// JobExecution is one row of the append-only checkpoint log. Rows are created
// RUNNING and finalized exactly once; a row left RUNNING by a killed process
// is ignored by watermark lookups.
type JobExecution struct {
	ID           string         `json:"id" db:"id"`
	JobName      string         `json:"job_name" db:"job_name"`
	Status       JobStatus      `json:"status" db:"status"`
	StartedAt    time.Time      `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt     *time.Time     `json:"failed_at,omitempty" db:"failed_at"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"metadata"`
}
