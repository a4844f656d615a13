package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, external_task_id, service, status, progress, steps_json, input_json, result_url, archive_key, error_detail, created_at, updated_at, estimated_completion`

// Upsert writes the full job snapshot, inserting on first sight.
func (r *JobRepositoryPG) Upsert(ctx context.Context, job *domain.GenerationJob) error {
	stepsJSON, err := json.Marshal(job.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	inputJSON, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	query := `
INSERT INTO generation_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    external_task_id = EXCLUDED.external_task_id,
    status = EXCLUDED.status,
    progress = EXCLUDED.progress,
    steps_json = EXCLUDED.steps_json,
    result_url = EXCLUDED.result_url,
    archive_key = EXCLUDED.archive_key,
    error_detail = EXCLUDED.error_detail,
    updated_at = EXCLUDED.updated_at;
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.ExternalTaskID,
		job.Service,
		job.Status,
		job.OverallProgress,
		stepsJSON,
		inputJSON,
		job.ResultURL,
		job.ArchiveKey,
		job.ErrorDetail,
		job.CreatedAt,
		job.UpdatedAt,
		job.EstimatedCompletion,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns the newest jobs first, up to limit.
func (r *JobRepositoryPG) List(ctx context.Context, limit int) ([]domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Delete removes the given job records.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM generation_jobs WHERE id = ANY($1);`, jobIDs)
	return err
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job       domain.GenerationJob
		stepsJSON []byte
		inputJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.ExternalTaskID,
		&job.Service,
		&job.Status,
		&job.OverallProgress,
		&stepsJSON,
		&inputJSON,
		&job.ResultURL,
		&job.ArchiveKey,
		&job.ErrorDetail,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.EstimatedCompletion,
	); err != nil {
		return nil, err
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps for job %s: %w", job.ID, err)
		}
	}
	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &job.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.GenerationJob, error) {
	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
