package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stratus/internal/config"
	"stratus/internal/domain/models"
	"stratus/internal/domain/repositories"
)

// DefaultJobName keys the reconciler's rows in the checkpoint log. Changing it
// resets the watermark: the next run falls back to start-of-day.
const DefaultJobName = "cascade-reconciler"

// Reconciler closes violations of the removal invariant ("removed implies all
// descendants removed") inside a bounded time window, in two phases: folders
// first, then files. It owns exactly one window per run and records the run in
// the checkpoint log, which is also how the next run picks its window.
type Reconciler struct {
	folders   repositories.FolderRepository
	files     repositories.FileRepository
	jobs      repositories.JobExecutionRepository
	jobName   string
	batchSize int
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler with the default job name and batch size.
func NewReconciler(
	folders repositories.FolderRepository,
	files repositories.FileRepository,
	jobs repositories.JobExecutionRepository,
	metrics *Metrics,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		folders:   folders,
		files:     files,
		jobs:      jobs,
		jobName:   DefaultJobName,
		batchSize: config.CascadeBatchSize,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one reconciliation pass. triggerID identifies the invocation
// (scheduler task id, manual trigger) and is kept in the run's metadata.
//
// The window is [start of last completed run, start of this run). A failed or
// killed run never completes, so its window is owned again by the next run;
// together with the guarded idempotent updates this makes overlapping or
// repeated windows safe.
func (r *Reconciler) Run(ctx context.Context, triggerID string) error {
	startedAt := r.now().UTC()

	window, err := r.selectWindow(ctx, startedAt)
	if err != nil {
		return err
	}

	execution, err := r.jobs.Start(ctx, r.jobName, startedAt, map[string]any{
		"trigger_id": triggerID,
	})
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	r.logger.Info("reconciliation run started",
		"job_name", r.jobName,
		"run_id", execution.ID,
		"window_start", window.Start,
		"window_until", window.Until,
	)

	if err := r.runPhases(ctx, window); err != nil {
		if failErr := r.jobs.Fail(ctx, execution.ID, r.now().UTC(), err.Error()); failErr != nil {
			r.logger.Error("failed to record run failure", "run_id", execution.ID, "error", failErr)
		}
		r.metrics.RunsTotal.WithLabelValues("failed").Inc()
		return err
	}

	if err := r.jobs.Complete(ctx, execution.ID, r.now().UTC()); err != nil {
		return fmt.Errorf("record run completion: %w", err)
	}

	r.metrics.RunsTotal.WithLabelValues("completed").Inc()
	r.metrics.RunDuration.Observe(r.now().UTC().Sub(startedAt).Seconds())
	r.logger.Info("reconciliation run completed", "run_id", execution.ID)
	return nil
}

// selectWindow derives this run's half-open window. The lower bound is the
// started_at of the last completed run, not its completion time, so a window
// left behind by a failed run is retried rather than skipped. With no
// completed run on record the window opens at the start of the current day.
func (r *Reconciler) selectWindow(ctx context.Context, startedAt time.Time) (models.TimeWindow, error) {
	last, err := r.jobs.LastCompleted(ctx, r.jobName)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("look up last completed run: %w", err)
	}

	start := startOfDay(startedAt)
	if last != nil {
		start = last.StartedAt
	}

	return models.TimeWindow{Start: start, Until: startedAt}, nil
}

func (r *Reconciler) runPhases(ctx context.Context, window models.TimeWindow) error {
	if err := r.cascadeFolders(ctx, window); err != nil {
		return fmt.Errorf("folder cascade: %w", err)
	}
	if err := r.cascadeFiles(ctx, window); err != nil {
		return fmt.Errorf("file cascade: %w", err)
	}
	return nil
}

// cascadeFolders is the Phase 1 fixpoint loop. Each iteration clears one more
// level of the violation for up to batchSize parents; marking a child removed
// can expose that child's own children, so after every corrective write the
// window's upper bound is advanced to now to keep the run's own writes in
// scope. The loop ends when a query returns no violations.
func (r *Reconciler) cascadeFolders(ctx context.Context, window models.TimeWindow) error {
	for {
		batch, err := r.folders.FindRemovedWithActiveChildFolders(ctx, window, r.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		fixed, err := r.folders.RemoveChildFolders(ctx, batch)
		if err != nil {
			return err
		}
		if fixed == 0 {
			// Guards against spinning on a batch nothing in this run can fix;
			// only possible if a concurrent writer races the query.
			r.logger.Warn("folder cascade made no progress, stopping", "batch", len(batch))
			return nil
		}

		window.Until = r.now().UTC()
		r.metrics.BatchesTotal.WithLabelValues(phaseFolders).Inc()
		r.metrics.RowsFixedTotal.WithLabelValues(phaseFolders).Add(float64(fixed))
		r.logger.Debug("folder cascade batch applied", "parents", len(batch), "children_removed", fixed)
	}
}

// cascadeFiles is the Phase 2 fixpoint loop: removed folders in the window
// that still hold non-deleted files. Files move straight to DELETED.
func (r *Reconciler) cascadeFiles(ctx context.Context, window models.TimeWindow) error {
	for {
		batch, err := r.folders.FindRemovedWithActiveFiles(ctx, window, r.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		fixed, err := r.files.RemoveFilesInFolders(ctx, batch)
		if err != nil {
			return err
		}
		if fixed == 0 {
			r.logger.Warn("file cascade made no progress, stopping", "batch", len(batch))
			return nil
		}

		window.Until = r.now().UTC()
		r.metrics.BatchesTotal.WithLabelValues(phaseFiles).Inc()
		r.metrics.RowsFixedTotal.WithLabelValues(phaseFiles).Add(float64(fixed))
		r.logger.Debug("file cascade batch applied", "folders", len(batch), "files_removed", fixed)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
