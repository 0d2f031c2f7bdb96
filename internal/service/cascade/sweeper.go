package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"stratus/internal/config"
	"stratus/internal/domain"
	"stratus/internal/domain/repositories"
)

// Sweeper is the on-demand, all-history variant of the cascade: it walks every
// account in ascending user id order and drains each user's violations
// completely before moving on. It keeps no checkpoint; resumption is manual
// via the starting user id plus the "user swept" log line.
type Sweeper struct {
	folders   repositories.FolderRepository
	files     repositories.FileRepository
	users     repositories.UserRepository
	batchSize int
	pageSize  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper creates a retroactive sweeper.
func NewSweeper(
	folders repositories.FolderRepository,
	files repositories.FileRepository,
	users repositories.UserRepository,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		folders:   folders,
		files:     files,
		users:     users,
		batchSize: config.CascadeBatchSize,
		pageSize:  config.SweepUserPageSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep processes all users with id >= fromUserID. Pass 0 to start from the
// beginning. Any error aborts the sweep; rerunning from the last logged user
// id is safe because every write is guarded and monotonic.
func (s *Sweeper) Sweep(ctx context.Context, fromUserID int64) error {
	if err := validation.Validate(fromUserID, validation.Min(int64(0))); err != nil {
		return fmt.Errorf("%w: from user id: %v", domain.ErrValidation, err)
	}

	after := fromUserID - 1
	if fromUserID == 0 {
		after = 0
	}

	for {
		ids, err := s.users.PageUserIDs(ctx, after, s.pageSize)
		if err != nil {
			return fmt.Errorf("page users after %d: %w", after, err)
		}
		if len(ids) == 0 {
			s.logger.Info("sweep finished", "last_user_id", after)
			return nil
		}

		for _, userID := range ids {
			if err := s.sweepUser(ctx, userID); err != nil {
				return fmt.Errorf("sweep user %d: %w", userID, err)
			}
			s.logger.Info("user swept", "user_id", userID)
		}

		after = ids[len(ids)-1]
	}
}

// sweepUser runs both fixpoint loops for one account, scoped to the user and
// an upper time bound instead of a global window. Users with no removed folder
// on record are skipped outright.
func (s *Sweeper) sweepUser(ctx context.Context, userID int64) error {
	latest, err := s.folders.LatestRemovedForUser(ctx, userID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	cutoff := s.now().UTC()
	if latest.RemovedAt != nil {
		cutoff = *latest.RemovedAt
	}

	if err := s.drainFolders(ctx, userID, cutoff); err != nil {
		return fmt.Errorf("folder cascade: %w", err)
	}
	if err := s.drainFiles(ctx, userID, cutoff); err != nil {
		return fmt.Errorf("file cascade: %w", err)
	}
	return nil
}

// drainFolders keeps fixing folder violations for the user until a query
// comes back empty. As in the periodic reconciler, the upper bound advances
// past the loop's own writes so newly exposed levels stay in scope.
func (s *Sweeper) drainFolders(ctx context.Context, userID int64, until time.Time) error {
	for {
		batch, err := s.folders.FindRemovedWithActiveChildFoldersForUser(ctx, userID, until, s.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		fixed, err := s.folders.RemoveChildFolders(ctx, batch)
		if err != nil {
			return err
		}
		if fixed == 0 {
			s.logger.Warn("folder drain made no progress, stopping", "user_id", userID, "batch", len(batch))
			return nil
		}

		until = s.now().UTC()
	}
}

func (s *Sweeper) drainFiles(ctx context.Context, userID int64, until time.Time) error {
	for {
		batch, err := s.folders.FindRemovedWithActiveFilesForUser(ctx, userID, until, s.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		fixed, err := s.files.RemoveFilesInFolders(ctx, batch)
		if err != nil {
			return err
		}
		if fixed == 0 {
			s.logger.Warn("file drain made no progress, stopping", "user_id", userID, "batch", len(batch))
			return nil
		}

		until = s.now().UTC()
	}
}
