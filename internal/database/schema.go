package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"stratus/internal/repository/postgres"
)

// EnsureSchema creates the tables the cascade engine touches if they do not
// exist yet. Production runs against the main application's schema; having
// the DDL in code keeps dev and test environments self-contained.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[3]s (
	id BIGINT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	uuid UUID NOT NULL UNIQUE,
	parent_uuid UUID,
	user_id BIGINT NOT NULL,
	plain_name TEXT NOT NULL,
	bucket TEXT NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT false,
	deleted_at TIMESTAMPTZ,
	removed BOOLEAN NOT NULL DEFAULT false,
	removed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_parent ON %[1]s(parent_uuid);
CREATE INDEX IF NOT EXISTS idx_%[1]s_removed_updated ON %[1]s(removed, updated_at);
CREATE TABLE IF NOT EXISTS %[2]s (
	uuid UUID PRIMARY KEY,
	folder_uuid UUID NOT NULL,
	user_id BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'EXISTS',
	size BIGINT NOT NULL DEFAULT 0,
	creation_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_folder ON %[2]s(folder_uuid, status);
CREATE TABLE IF NOT EXISTS %[4]s (
	id UUID PRIMARY KEY,
	job_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	failed_at TIMESTAMPTZ,
	error_message TEXT,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_%[4]s_name_status ON %[4]s(job_name, status, started_at DESC);`,
		tables.Folders, tables.Files, tables.Users, tables.JobExecutions)

	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
