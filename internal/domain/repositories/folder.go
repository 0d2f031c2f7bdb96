package repositories

import (
	"context"
	"time"

	"stratus/internal/domain/models"
)

// FolderRepository is the tree-store surface the cascade engine drives.
// Every corrective write is guarded (`removed = false`) so replays are no-ops,
// and every traversal predicate is scoped to the owning user.
type FolderRepository interface {
	// FindRemovedWithActiveChildFolders returns up to limit uuids of folders
	// that are removed, were updated inside the half-open window, and still
	// have at least one direct child folder with removed = false.
	FindRemovedWithActiveChildFolders(ctx context.Context, window models.TimeWindow, limit int) ([]string, error)

	// FindRemovedWithActiveChildFoldersForUser is the per-user variant used by
	// the retroactive sweep: same violation predicate, scoped to userID and
	// updated_at <= until.
	FindRemovedWithActiveChildFoldersForUser(ctx context.Context, userID int64, until time.Time, limit int) ([]string, error)

	// RemoveChildFolders marks every direct child of the given parents as
	// removed and deleted. Children already removed are untouched. Returns the
	// number of rows changed.
	RemoveChildFolders(ctx context.Context, parentUUIDs []string) (int64, error)

	// FindRemovedWithActiveFiles returns up to limit uuids of removed folders
	// updated inside the window that still hold a file with status other than
	// DELETED.
	FindRemovedWithActiveFiles(ctx context.Context, window models.TimeWindow, limit int) ([]string, error)

	// FindRemovedWithActiveFilesForUser is the per-user variant for the sweep.
	FindRemovedWithActiveFilesForUser(ctx context.Context, userID int64, until time.Time, limit int) ([]string, error)

	// LatestRemovedForUser returns the user's most recently removed folder,
	// or nil if the user never removed one.
	LatestRemovedForUser(ctx context.Context, userID int64) (*models.Folder, error)

	// FindRemovableDuplicates selects up to limit duplicate top-level groups
	// (same plain_name, bucket and user, no parent) created inside the window
	// and returns the uuids of the non-kept rows that hold no live file and no
	// live child folder. The row with the minimum id in each group is kept.
	FindRemovableDuplicates(ctx context.Context, window models.TimeWindow, limit int) ([]string, error)

	// SoftRemoveFolders marks the given folders deleted and removed in a
	// single guarded statement. Returns the number of rows changed.
	SoftRemoveFolders(ctx context.Context, uuids []string) (int64, error)

	// SumSubtreeFileSizes walks the subtree rooted at folderUUID and sums the
	// sizes of descendant files that still exist. TRASHED files are included
	// only when includeTrash is set.
	SumSubtreeFileSizes(ctx context.Context, folderUUID string, userID int64, includeTrash bool) (int64, error)

	// SubtreeFileStats counts descendant EXISTS files ranked by creation order
	// and sums the sizes of the first sizeBudget of them. found is the number
	// of ranked files seen up to the budget, size the capped sum.
	SubtreeFileStats(ctx context.Context, folderUUID string, userID int64, sizeBudget int) (found int, size int64, err error)
}

// FileRepository covers the file side of the cascade.
type FileRepository interface {
	// RemoveFilesInFolders moves every file of the given folders to DELETED,
	// guarded so already-deleted files are untouched. Returns rows changed.
	RemoveFilesInFolders(ctx context.Context, folderUUIDs []string) (int64, error)
}
