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

// Dedupe is the one-off sweep that repairs duplicate top-level folders created
// inside a known incident window. It uses the same bounded-batch pattern as
// the reconciler but keeps no checkpoint: every write is guarded and
// monotonic, so the whole tool can simply be rerun after an abort.
type Dedupe struct {
	folders     repositories.FolderRepository
	txm         repositories.TransactionManager
	window      models.TimeWindow
	batchSize   int
	maxAttempts int
	pause       time.Duration
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewDedupe creates a deduplication sweep over the given incident window.
func NewDedupe(folders repositories.FolderRepository, txm repositories.TransactionManager, window models.TimeWindow, logger *slog.Logger) *Dedupe {
	return &Dedupe{
		folders:     folders,
		txm:         txm,
		window:      window,
		batchSize:   config.CascadeBatchSize,
		maxAttempts: config.DedupeMaxAttempts,
		pause:       config.DedupePause,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Run drains duplicate groups batch by batch until a batch removes zero rows,
// pausing between batches to bound load. A failing batch is retried up to
// maxAttempts with the same pause; after that the run aborts with the last
// error, keeping the progress of earlier batches.
func (d *Dedupe) Run(ctx context.Context) error {
	var totalRemoved int64

	for {
		removed, err := d.runBatchWithRetry(ctx)
		if err != nil {
			return err
		}
		if removed == 0 {
			d.logger.Info("deduplication finished", "folders_removed", totalRemoved)
			return nil
		}

		totalRemoved += removed
		d.logger.Info("deduplication batch applied", "removed", removed, "total", totalRemoved)

		if err := d.sleep(ctx, d.pause); err != nil {
			return err
		}
	}
}

func (d *Dedupe) runBatchWithRetry(ctx context.Context) (int64, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		removed, err := d.runBatch(ctx)
		if err == nil {
			return removed, nil
		}
		lastErr = err
		d.logger.Warn("deduplication batch failed",
			"attempt", attempt,
			"max_attempts", d.maxAttempts,
			"error", err,
		)

		if attempt < d.maxAttempts {
			if err := d.sleep(ctx, d.pause); err != nil {
				return 0, err
			}
		}
	}

	return 0, fmt.Errorf("deduplication batch failed after %d attempts: %w", d.maxAttempts, lastErr)
}

// runBatch selects and removes one batch inside a single transaction so the
// emptiness check and the removal see the same snapshot.
func (d *Dedupe) runBatch(ctx context.Context) (int64, error) {
	var removed int64
	err := d.txm.ExecTx(ctx, func(ctx context.Context) error {
		uuids, err := d.folders.FindRemovableDuplicates(ctx, d.window, d.batchSize)
		if err != nil {
			return err
		}
		if len(uuids) == 0 {
			return nil
		}

		removed, err = d.folders.SoftRemoveFolders(ctx, uuids)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
