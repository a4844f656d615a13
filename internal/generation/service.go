// Package generation implements the tracking core: it submits requests to
// the provider adapters, seeds the registry, polls remote task status until
// a terminal state, and reacts to transitions with persistence and
// notifications.
package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/adapter/jobcache"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/storage"
)

const resumeLimit = 200

// Config holds the polling policy. One interval for all call sites.
type Config struct {
	// PollInterval is the fixed delay between status checks for a job.
	PollInterval time.Duration
	// PollTimeout is the wall-clock ceiling from submission to a terminal
	// state; expiry forces the timeout status.
	PollTimeout time.Duration
	// RequestTimeout bounds a single status request.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Deps carries the collaborators of the service. Registry and Adapters are
// required; the rest degrade gracefully when absent.
type Deps struct {
	Adapters map[domain.Service]music.Adapter
	Registry *registry.Registry
	Repo     domain.JobRepository
	Cache    *jobcache.Store
	Notifier Notifier
	Archiver *storage.Archiver
	Logger   infra.Logger
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Service owns the generation lifecycle.
type Service struct {
	cfg      Config
	adapters map[domain.Service]music.Adapter
	reg      *registry.Registry
	repo     domain.JobRepository
	cache    *jobcache.Store
	notifier Notifier
	archiver *storage.Archiver
	logger   infra.Logger
	now      func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New wires a generation service.
func New(cfg Config, deps Deps) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		adapters: deps.Adapters,
		reg:      deps.Registry,
		repo:     deps.Repo,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		archiver: deps.Archiver,
		logger:   deps.Logger,
		now:      now,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit validates the input, creates a local job, calls the provider's
// create endpoint and starts polling. The returned job id exists even when
// the remote call failed; the error tells the caller the job is already in
// a failed state. Validation errors return before any job is created.
func (s *Service) Submit(ctx context.Context, input domain.GenerationInput, idemKey string) (string, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return "", err
	}
	adapter, ok := s.adapters[input.Service]
	if !ok {
		return "", fmt.Errorf("%w: service %q not configured", domain.ErrValidation, input.Service)
	}
	if !adapter.HasCredentials() {
		return "", fmt.Errorf("%w: %s", domain.ErrNoCredentials, input.Service)
	}
	if input.Title == "" && input.Type == domain.InputDescription {
		input.Title = TitleFromPrompt(input.Prompt)
	}

	fingerprint := jobcache.Fingerprint(input)
	if s.cache != nil && idemKey != "" {
		jobID, hit, err := s.cache.LookupIdempotent(ctx, idemKey, fingerprint)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		if hit {
			if _, exists := s.reg.Get(jobID); exists {
				return jobID, nil
			}
		}
	}

	jobID := uuid.NewString()
	job := domain.NewJob(jobID, input, s.now())
	s.reg.Upsert(job)
	s.persist(job)
	if s.cache != nil && idemKey != "" {
		if err := s.cache.RememberIdempotent(ctx, idemKey, fingerprint, jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("generation: remember idempotency key failed")
		}
	}

	taskID, err := adapter.Submit(ctx, toGenerateRequest(input, jobID))
	if err != nil {
		kind := Classify(err)
		job, change := s.apply(jobID, domain.Event{Kind: domain.EventSubmitFailed, ErrorDetail: err.Error(), At: s.now()})
		s.react(job, change)
		s.logger.Error().Err(err).
			Str("job_id", jobID).
			Str("service", string(input.Service)).
			Str("error_kind", string(kind)).
			Msg("generation: submit failed")
		return jobID, fmt.Errorf("submit %s job: %w", input.Service, err)
	}

	job, change := s.apply(jobID, domain.Event{Kind: domain.EventAccepted, TaskID: taskID, At: s.now()})
	s.react(job, change)
	s.startPoller(job)
	s.logger.Info().Str("job_id", jobID).Str("task_id", taskID).Str("service", string(input.Service)).Msg("generation: job queued")
	return jobID, nil
}

// Cancel marks the job cancelled and aborts its in-flight status request.
// The registry is updated first, so a response that was already on the wire
// is discarded when it lands.
func (s *Service) Cancel(jobID string) error {
	job, ok := s.reg.Get(jobID)
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	job, change := s.apply(jobID, domain.Event{Kind: domain.EventCancelled, At: s.now()})
	s.react(job, change)
	s.stopPoller(jobID)
	return nil
}

// Retry resubmits the stored input snapshot of a terminal job as a brand
// new job. The original record is never resurrected.
func (s *Service) Retry(ctx context.Context, jobID string) (string, error) {
	job, ok := s.reg.Get(jobID)
	if !ok {
		return "", domain.ErrNotFound
	}
	if job.Status.Active() {
		return "", domain.ErrJobActive
	}
	return s.Submit(ctx, job.Input, "")
}

// ClearTerminal removes terminal jobs from the registry and the durable
// store and returns how many were removed.
func (s *Service) ClearTerminal(ctx context.Context, opts registry.ClearOptions) int {
	removed := s.reg.ClearTerminal(opts)
	if len(removed) == 0 {
		return 0
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, removed); err != nil {
			s.logger.Error().Err(err).Int("count", len(removed)).Msg("generation: delete cleared jobs failed")
		}
	}
	if s.cache != nil {
		s.cache.Forget(ctx, removed)
	}
	return len(removed)
}

// Lookup finds a job by id: registry first, then the snapshot cache, then
// the durable store.
func (s *Service) Lookup(ctx context.Context, jobID string) (domain.GenerationJob, error) {
	if job, ok := s.reg.Get(jobID); ok {
		return job, nil
	}
	if s.cache != nil {
		if job, ok := s.cache.Snapshot(ctx, jobID); ok {
			return job, nil
		}
	}
	if s.repo != nil {
		job, err := s.repo.GetByID(ctx, jobID)
		if err != nil {
			return domain.GenerationJob{}, err
		}
		return *job, nil
	}
	return domain.GenerationJob{}, domain.ErrNotFound
}

// Resume loads persisted jobs into the registry and restarts polling for
// the active ones with whatever deadline budget they have left. Jobs that
// were interrupted before the provider accepted them are failed.
func (s *Service) Resume(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	jobs, err := s.repo.List(ctx, resumeLimit)
	if err != nil {
		return fmt.Errorf("resume: load jobs: %w", err)
	}
	for _, job := range jobs {
		if _, exists := s.reg.Get(job.ID); !exists {
			s.reg.Upsert(job)
		}
	}
	for _, job := range s.reg.ListActive() {
		if job.ExternalTaskID == "" {
			j, change := s.apply(job.ID, domain.Event{Kind: domain.EventSubmitFailed, ErrorDetail: "interrupted by restart", At: s.now()})
			s.react(j, change)
			continue
		}
		s.startPoller(job)
	}
	return nil
}

// Close stops all polling loops and waits for them to drain.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, cancel := range s.cancels {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
}

// apply runs the pure transition under the registry's per-job lock.
func (s *Service) apply(jobID string, ev domain.Event) (domain.GenerationJob, domain.Change) {
	var change domain.Change
	job, ok := s.reg.Update(jobID, func(j domain.GenerationJob) domain.GenerationJob {
		next, ch := domain.Transition(j, ev)
		change = ch
		return next
	})
	if !ok {
		return domain.GenerationJob{}, domain.Change{}
	}
	return job, change
}

// react applies the side effects of a transition: durable persistence and,
// on the single transition into a terminal state, one notification plus
// result archival.
func (s *Service) react(job domain.GenerationJob, change domain.Change) {
	if !change.Applied {
		return
	}
	s.persist(job)
	if !change.Terminal {
		return
	}
	s.stopPoller(job.ID)
	if s.notifier != nil {
		s.notifier.Notify(job)
	}
	if change.To == domain.StatusCompleted && s.archiver != nil && job.ResultURL != "" {
		s.wg.Add(1)
		go s.archiveResult(job)
	}
}

func (s *Service) archiveResult(job domain.GenerationJob) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	key, err := s.archiver.ArchiveTrack(ctx, job.ID, job.ResultURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: archive track failed")
		return
	}
	updated, ok := s.reg.Update(job.ID, func(j domain.GenerationJob) domain.GenerationJob {
		j.ArchiveKey = key
		return j
	})
	if ok {
		s.persist(updated)
	}
}

func (s *Service) persist(job domain.GenerationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.repo != nil {
		if err := s.repo.Upsert(ctx, &job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: persist job failed")
		}
	}
	if s.cache != nil {
		if err := s.cache.SaveSnapshot(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: cache snapshot failed")
		}
	}
}

func toGenerateRequest(input domain.GenerationInput, jobID string) music.GenerateRequest {
	return music.GenerateRequest{
		Kind:            string(input.Type),
		Prompt:          input.Prompt,
		Lyrics:          input.Lyrics,
		Title:           input.Title,
		Style:           input.Style,
		Instrumental:    input.Instrumental,
		Model:           input.Model,
		DurationSeconds: input.DurationSeconds,
		RequestID:       jobID,
	}
}
