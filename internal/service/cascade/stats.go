package cascade

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"stratus/internal/config"
	"stratus/internal/domain"
	"stratus/internal/domain/models"
	"stratus/internal/domain/repositories"
)

// StatsEstimator answers folder size and folder statistics questions over a
// subtree. Statistics are approximate above a hard row budget: the exactness
// flags on the result are authoritative, and a false flag means the number is
// a floor of the true value.
type StatsEstimator struct {
	folders repositories.FolderRepository
	logger  *slog.Logger
}

// NewStatsEstimator creates a stats estimator.
func NewStatsEstimator(folders repositories.FolderRepository, logger *slog.Logger) *StatsEstimator {
	return &StatsEstimator{folders: folders, logger: logger}
}

// CalculateSize returns the exact total size of the subtree's live files,
// optionally counting TRASHED files as well. There is no row cap on this
// path; very large trees are bounded by the database statement timeout, which
// surfaces as domain.ErrCalculationTimeout.
func (e *StatsEstimator) CalculateSize(ctx context.Context, folderUUID string, userID int64, includeTrash bool) (int64, error) {
	if err := validateFolderRef(folderUUID, userID); err != nil {
		return 0, err
	}

	total, err := e.folders.SumSubtreeFileSizes(ctx, folderUUID, userID, includeTrash)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CalculateStats returns the subtree's file count and total size under the
// configured budgets. EXISTS files are ranked by creation order; only the
// first config.StatsSizeBudget are summed and the reported count is capped at
// config.StatsFileCountCap.
func (e *StatsEstimator) CalculateStats(ctx context.Context, folderUUID string, userID int64) (*models.FolderStats, error) {
	if err := validateFolderRef(folderUUID, userID); err != nil {
		return nil, err
	}

	found, size, err := e.folders.SubtreeFileStats(ctx, folderUUID, userID, config.StatsSizeBudget)
	if err != nil {
		return nil, err
	}

	fileCount := found
	if fileCount > config.StatsFileCountCap {
		fileCount = config.StatsFileCountCap
	}

	stats := &models.FolderStats{
		FileCount:        fileCount,
		IsFileCountExact: found <= config.StatsFileCountCap,
		TotalSize:        size,
		IsTotalSizeExact: found < config.StatsSizeBudget,
	}

	if !stats.IsFileCountExact || !stats.IsTotalSizeExact {
		e.logger.Debug("folder stats hit budget",
			"folder_uuid", folderUUID,
			"files_found", found,
		)
	}

	return stats, nil
}

func validateFolderRef(folderUUID string, userID int64) error {
	if err := validation.Validate(folderUUID, validation.Required, is.UUID); err != nil {
		return fmt.Errorf("%w: folder uuid: %v", domain.ErrValidation, err)
	}
	if err := validation.Validate(userID, validation.Required, validation.Min(int64(1))); err != nil {
		return fmt.Errorf("%w: user id: %v", domain.ErrValidation, err)
	}
	return nil
}
