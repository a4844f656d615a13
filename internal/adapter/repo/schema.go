package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id                   TEXT PRIMARY KEY,
    external_task_id     TEXT NOT NULL DEFAULT '',
    service              TEXT NOT NULL,
    status               TEXT NOT NULL,
    progress             INT NOT NULL DEFAULT 0,
    steps_json           JSONB NOT NULL DEFAULT '[]'::jsonb,
    input_json           JSONB NOT NULL DEFAULT '{}'::jsonb,
    result_url           TEXT NOT NULL DEFAULT '',
    archive_key          TEXT NOT NULL DEFAULT '',
    error_detail         TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL,
    estimated_completion TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS generation_jobs_status_idx ON generation_jobs (status);
CREATE INDEX IF NOT EXISTS generation_jobs_created_at_idx ON generation_jobs (created_at DESC);
`

// EnsureSchema creates the jobs table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createJobsTable)
	return err
}
