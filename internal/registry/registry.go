// Package registry holds the in-memory collection of generation jobs. It is
// the authoritative view the API renders from; persistence trails behind it.
package registry

import (
	"sort"
	"sync"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
)

const defaultSubscriberBuffer = 64

// Registry is a keyed map from job id to GenerationJob with change
// subscriptions. All mutations are atomic with respect to a single job:
// Update runs its read-modify-write under the registry lock, so two updates
// for the same job can never interleave.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]domain.GenerationJob
	subs    map[int]chan domain.GenerationJob
	nextSub int
	dropped int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		jobs: make(map[string]domain.GenerationJob),
		subs: make(map[int]chan domain.GenerationJob),
	}
}

// Upsert inserts or replaces the job and notifies subscribers.
func (r *Registry) Upsert(job domain.GenerationJob) {
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.broadcastLocked(job)
	r.mu.Unlock()
}

// Update applies fn to the stored job under the registry lock and notifies
// subscribers with the result. It reports false when the job is unknown.
func (r *Registry) Update(jobID string, fn func(domain.GenerationJob) domain.GenerationJob) (domain.GenerationJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.GenerationJob{}, false
	}
	job = fn(job)
	r.jobs[jobID] = job
	r.broadcastLocked(job)
	return job, true
}

// Get returns the job for the given id.
func (r *Registry) Get(jobID string) (domain.GenerationJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	return job, ok
}

// List returns all jobs, newest first.
func (r *Registry) List() []domain.GenerationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.GenerationJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	sortJobs(out)
	return out
}

// ListActive returns jobs that still need scheduled status checks.
func (r *Registry) ListActive() []domain.GenerationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.GenerationJob
	for _, job := range r.jobs {
		if job.Status.Active() {
			out = append(out, job)
		}
	}
	sortJobs(out)
	return out
}

// ClearOptions selects which terminal statuses ClearTerminal removes.
// Completed and failed jobs are always cleared; cancelled and timed-out jobs
// only when requested.
type ClearOptions struct {
	Cancelled bool
	Timeout   bool
}

// ClearTerminal removes terminal jobs and returns the removed ids. Active
// jobs are never touched.
func (r *Registry) ClearTerminal(opts ClearOptions) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, job := range r.jobs {
		switch job.Status {
		case domain.StatusCompleted, domain.StatusFailed:
		case domain.StatusCancelled:
			if !opts.Cancelled {
				continue
			}
		case domain.StatusTimeout:
			if !opts.Timeout {
				continue
			}
		default:
			continue
		}
		delete(r.jobs, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}

// Subscribe registers a listener for job snapshots. Every Upsert/Update
// delivers the updated job to the channel; slow subscribers miss updates
// rather than blocking mutations. The returned func cancels the
// subscription.
func (r *Registry) Subscribe() (<-chan domain.GenerationJob, func()) {
	ch := make(chan domain.GenerationJob, defaultSubscriberBuffer)
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if existing, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(existing)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Dropped returns how many subscriber deliveries were skipped due to full
// buffers.
func (r *Registry) Dropped() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

func (r *Registry) broadcastLocked(job domain.GenerationJob) {
	for _, ch := range r.subs {
		select {
		case ch <- job:
		default:
			r.dropped++
		}
	}
}

func sortJobs(jobs []domain.GenerationJob) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID > jobs[k].ID
		}
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
