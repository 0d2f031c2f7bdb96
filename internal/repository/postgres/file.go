package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"stratus/internal/domain/repositories"
)

// PostgresFileRepository implements the FileRepository interface
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFileRepository creates a new file repository
func NewFileRepository(config *RepositoryConfig) repositories.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// RemoveFilesInFolders moves every file of the given folders to DELETED. The
// status guard makes replays no-ops; the user_id join keeps the cascade inside
// the owning account.
func (r *PostgresFileRepository) RemoveFilesInFolders(ctx context.Context, folderUUIDs []string) (int64, error) {
	if len(folderUUIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s fi
		SET status = 'DELETED',
		    updated_at = NOW()
		FROM %s f
		WHERE f.uuid = ANY($1)
		  AND fi.folder_uuid = f.uuid
		  AND fi.user_id = f.user_id
		  AND fi.status <> 'DELETED'
	`, r.tables.Files, r.tables.Folders)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, folderUUIDs)
	if err != nil {
		return 0, fmt.Errorf("remove files in folders: %w", err)
	}

	return tag.RowsAffected(), nil
}
