package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"stratus/internal/domain/models"
	"stratus/internal/domain/repositories"
)

// PostgresJobExecutionRepository implements the JobExecutionRepository
// interface over the append-only checkpoint table.
type PostgresJobExecutionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewJobExecutionRepository creates a new job execution repository
func NewJobExecutionRepository(config *RepositoryConfig) repositories.JobExecutionRepository {
	return &PostgresJobExecutionRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Start inserts a RUNNING row for this run and returns it.
func (r *PostgresJobExecutionRepository) Start(ctx context.Context, jobName string, startedAt time.Time, metadata map[string]any) (*models.JobExecution, error) {
	execution := &models.JobExecution{
		ID:        uuid.NewString(),
		JobName:   jobName,
		Status:    models.JobStatusRunning,
		StartedAt: startedAt,
		Metadata:  metadata,
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, job_name, status, started_at, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.JobExecutions)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		execution.ID,
		execution.JobName,
		execution.Status,
		execution.StartedAt,
		execution.Metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("start job execution: %w", err)
	}

	return execution, nil
}

// Complete finalizes a run as COMPLETED. The status guard keeps the log
// append-only: a finalized row is never rewritten.
func (r *PostgresJobExecutionRepository) Complete(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`, r.tables.JobExecutions)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		models.JobStatusCompleted, at, id, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("complete job execution: %w", err)
	}

	return nil
}

// Fail finalizes a run as FAILED with the error message.
func (r *PostgresJobExecutionRepository) Fail(ctx context.Context, id string, at time.Time, errorMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, failed_at = $2, error_message = $3
		WHERE id = $4 AND status = $5
	`, r.tables.JobExecutions)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		models.JobStatusFailed, at, errorMessage, id, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("fail job execution: %w", err)
	}

	return nil
}

// LastCompleted returns the most recent COMPLETED run for the job name, or
// nil if the job never completed. Rows stuck in RUNNING (e.g. the process was
// killed mid-run) are ignored here, so their window is retried by the next
// run rather than skipped.
func (r *PostgresJobExecutionRepository) LastCompleted(ctx context.Context, jobName string) (*models.JobExecution, error) {
	query := fmt.Sprintf(`
		SELECT id, job_name, status, started_at, completed_at, failed_at, error_message, metadata
		FROM %s
		WHERE job_name = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1
	`, r.tables.JobExecutions)

	var execution models.JobExecution
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, jobName, models.JobStatusCompleted).Scan(
		&execution.ID,
		&execution.JobName,
		&execution.Status,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.FailedAt,
		&execution.ErrorMessage,
		&execution.Metadata,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last completed job execution: %w", err)
	}

	return &execution, nil
}
