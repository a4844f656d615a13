package domain

import "context"

// JobRepository defines persistence for generation jobs. The in-memory
// registry stays authoritative while the process runs; the repository keeps
// records durable across restarts.
type JobRepository interface {
	Upsert(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	List(ctx context.Context, limit int) ([]GenerationJob, error)
	Delete(ctx context.Context, jobIDs []string) error
}
