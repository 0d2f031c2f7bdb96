package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"stratus/internal/domain"
	"stratus/internal/domain/models"
	"stratus/internal/domain/repositories"
)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// FindRemovedWithActiveChildFolders returns removed folders updated inside the
// window that still have a direct child folder with removed = false.
func (r *PostgresFolderRepository) FindRemovedWithActiveChildFolders(ctx context.Context, window models.TimeWindow, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT f.uuid
		FROM %s f
		WHERE f.removed = true
		  AND f.updated_at >= $1
		  AND f.updated_at < $2
		  AND EXISTS (
			SELECT 1 FROM %s c
			WHERE c.parent_uuid = f.uuid
			  AND c.user_id = f.user_id
			  AND c.removed = false
		  )
		LIMIT $3
	`, r.tables.Folders, r.tables.Folders)

	return r.queryUUIDs(ctx, query, window.Start, window.Until, limit)
}

// FindRemovedWithActiveChildFoldersForUser is the per-user sweep variant of
// FindRemovedWithActiveChildFolders.
func (r *PostgresFolderRepository) FindRemovedWithActiveChildFoldersForUser(ctx context.Context, userID int64, until time.Time, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT f.uuid
		FROM %s f
		WHERE f.user_id = $1
		  AND f.removed = true
		  AND f.updated_at <= $2
		  AND EXISTS (
			SELECT 1 FROM %s c
			WHERE c.parent_uuid = f.uuid
			  AND c.user_id = f.user_id
			  AND c.removed = false
		  )
		LIMIT $3
	`, r.tables.Folders, r.tables.Folders)

	return r.queryUUIDs(ctx, query, userID, until, limit)
}

// RemoveChildFolders marks every direct child of the given parents removed and
// deleted. The removed = false guard makes replays no-ops; the user_id join
// keeps the cascade inside the owning account.
func (r *PostgresFolderRepository) RemoveChildFolders(ctx context.Context, parentUUIDs []string) (int64, error) {
	if len(parentUUIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s c
		SET removed = true,
		    removed_at = NOW(),
		    deleted = true,
		    deleted_at = NOW(),
		    updated_at = NOW()
		FROM %s p
		WHERE p.uuid = ANY($1)
		  AND c.parent_uuid = p.uuid
		  AND c.user_id = p.user_id
		  AND c.removed = false
	`, r.tables.Folders, r.tables.Folders)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, parentUUIDs)
	if err != nil {
		return 0, fmt.Errorf("remove child folders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// FindRemovedWithActiveFiles returns removed folders updated inside the window
// that still hold a file whose status is not DELETED.
func (r *PostgresFolderRepository) FindRemovedWithActiveFiles(ctx context.Context, window models.TimeWindow, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT f.uuid
		FROM %s f
		WHERE f.removed = true
		  AND f.updated_at >= $1
		  AND f.updated_at < $2
		  AND EXISTS (
			SELECT 1 FROM %s fi
			WHERE fi.folder_uuid = f.uuid
			  AND fi.user_id = f.user_id
			  AND fi.status <> 'DELETED'
		  )
		LIMIT $3
	`, r.tables.Folders, r.tables.Files)

	return r.queryUUIDs(ctx, query, window.Start, window.Until, limit)
}

// FindRemovedWithActiveFilesForUser is the per-user sweep variant of
// FindRemovedWithActiveFiles.
func (r *PostgresFolderRepository) FindRemovedWithActiveFilesForUser(ctx context.Context, userID int64, until time.Time, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT f.uuid
		FROM %s f
		WHERE f.user_id = $1
		  AND f.removed = true
		  AND f.updated_at <= $2
		  AND EXISTS (
			SELECT 1 FROM %s fi
			WHERE fi.folder_uuid = f.uuid
			  AND fi.user_id = f.user_id
			  AND fi.status <> 'DELETED'
		  )
		LIMIT $3
	`, r.tables.Folders, r.tables.Files)

	return r.queryUUIDs(ctx, query, userID, until, limit)
}

// LatestRemovedForUser returns the user's most recently removed folder, or nil
// if the user has no removed folders at all.
func (r *PostgresFolderRepository) LatestRemovedForUser(ctx context.Context, userID int64) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT id, uuid, parent_uuid, user_id, plain_name, bucket,
		       deleted, deleted_at, removed, removed_at, created_at, updated_at
		FROM %s
		WHERE user_id = $1 AND removed = true
		ORDER BY removed_at DESC NULLS LAST
		LIMIT 1
	`, r.tables.Folders)

	var folder models.Folder
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&folder.ID,
		&folder.UUID,
		&folder.ParentUUID,
		&folder.UserID,
		&folder.PlainName,
		&folder.Bucket,
		&folder.Deleted,
		&folder.DeletedAt,
		&folder.Removed,
		&folder.RemovedAt,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest removed folder: %w", err)
	}

	return &folder, nil
}

// FindRemovableDuplicates selects duplicate top-level groups created inside
// the incident window and returns the non-kept rows that are safe to remove:
// no live file and no live child folder. The minimum id per group is kept.
func (r *PostgresFolderRepository) FindRemovableDuplicates(ctx context.Context, window models.TimeWindow, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		WITH duplicate_groups AS (
			SELECT plain_name, bucket, user_id, MIN(id) AS keep_id
			FROM %s
			WHERE parent_uuid IS NULL
			  AND removed = false
			  AND deleted = false
			  AND created_at >= $1
			  AND created_at < $2
			GROUP BY plain_name, bucket, user_id
			HAVING COUNT(*) > 1
			LIMIT $3
		)
		SELECT f.uuid
		FROM %s f
		JOIN duplicate_groups d
		  ON f.plain_name = d.plain_name
		 AND f.bucket = d.bucket
		 AND f.user_id = d.user_id
		WHERE f.parent_uuid IS NULL
		  AND f.id <> d.keep_id
		  AND f.removed = false
		  AND f.deleted = false
		  AND f.created_at >= $1
		  AND f.created_at < $2
		  AND NOT EXISTS (
			SELECT 1 FROM %s fi
			WHERE fi.folder_uuid = f.uuid
			  AND fi.status <> 'DELETED'
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM %s c
			WHERE c.parent_uuid = f.uuid
			  AND c.removed = false
		  )
	`, r.tables.Folders, r.tables.Folders, r.tables.Files, r.tables.Folders)

	return r.queryUUIDs(ctx, query, window.Start, window.Until, limit)
}

// SoftRemoveFolders trashes and removes the given folders in one guarded
// statement.
func (r *PostgresFolderRepository) SoftRemoveFolders(ctx context.Context, uuids []string) (int64, error) {
	if len(uuids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted = true,
		    deleted_at = NOW(),
		    removed = true,
		    removed_at = NOW(),
		    updated_at = NOW()
		WHERE uuid = ANY($1)
		  AND deleted = false
		  AND removed = false
	`, r.tables.Folders)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, uuids)
	if err != nil {
		return 0, fmt.Errorf("soft remove folders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SumSubtreeFileSizes sums descendant file sizes with a single recursive
// traversal. The depth guard stops runaway traversal on a corrupted (cyclic)
// parent chain; the user_id predicate on every hop prevents cross-user leakage
// from uuid reuse.
func (r *PostgresFolderRepository) SumSubtreeFileSizes(ctx context.Context, folderUUID string, userID int64, includeTrash bool) (int64, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT uuid, user_id, 0 AS depth
			FROM %s
			WHERE uuid = $1 AND user_id = $2
			UNION ALL
			SELECT c.uuid, c.user_id, s.depth + 1
			FROM %s c
			JOIN subtree s ON c.parent_uuid = s.uuid
			WHERE c.user_id = $2
			  AND c.removed = false
			  AND s.depth < %d
		)
		SELECT COALESCE(SUM(fi.size), 0)::bigint
		FROM subtree s
		JOIN %s fi ON fi.folder_uuid = s.uuid
		WHERE fi.user_id = $2
		  AND (fi.status = 'EXISTS' OR ($3 AND fi.status = 'TRASHED'))
	`, r.tables.Folders, r.tables.Folders, maxTraversalDepth, r.tables.Files)

	var total int64
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, folderUUID, userID, includeTrash).Scan(&total)
	if err != nil {
		if IsPgStatementTimeout(err) {
			return 0, &domain.CalculationTimeoutError{FolderUUID: folderUUID}
		}
		return 0, fmt.Errorf("sum subtree file sizes: %w", err)
	}

	return total, nil
}

// SubtreeFileStats counts descendant EXISTS files in creation order and sums
// the sizes of the first sizeBudget of them. found never exceeds sizeBudget;
// callers derive exactness flags from it.
func (r *PostgresFolderRepository) SubtreeFileStats(ctx context.Context, folderUUID string, userID int64, sizeBudget int) (int, int64, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT uuid, user_id, 0 AS depth
			FROM %s
			WHERE uuid = $1 AND user_id = $2
			UNION ALL
			SELECT c.uuid, c.user_id, s.depth + 1
			FROM %s c
			JOIN subtree s ON c.parent_uuid = s.uuid
			WHERE c.user_id = $2
			  AND c.removed = false
			  AND s.depth < %d
		),
		ranked AS (
			SELECT fi.size
			FROM subtree s
			JOIN %s fi ON fi.folder_uuid = s.uuid
			WHERE fi.user_id = $2
			  AND fi.status = 'EXISTS'
			ORDER BY fi.creation_time ASC
			LIMIT $3
		)
		SELECT COUNT(*), COALESCE(SUM(size), 0)::bigint
		FROM ranked
	`, r.tables.Folders, r.tables.Folders, maxTraversalDepth, r.tables.Files)

	var (
		found int
		size  int64
	)
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, folderUUID, userID, sizeBudget).Scan(&found, &size)
	if err != nil {
		if IsPgStatementTimeout(err) {
			return 0, 0, &domain.CalculationTimeoutError{FolderUUID: folderUUID}
		}
		return 0, 0, fmt.Errorf("subtree file stats: %w", err)
	}

	return found, size, nil
}

// maxTraversalDepth bounds the recursive subtree walk so a cyclic parent
// chain cannot spin the query forever.
const maxTraversalDepth = 100000

func (r *PostgresFolderRepository) queryUUIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query folder uuids: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("scan folder uuid: %w", err)
		}
		uuids = append(uuids, uuid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder uuids: %w", err)
	}

	return uuids, nil
}
