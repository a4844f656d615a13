package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
)

// fakeAdapter scripts submit results and a sequence of status responses.
type fakeAdapter struct {
	mu            sync.Mutex
	submitTaskID  string
	submitErr     error
	submitCalls   int
	statuses      []statusStep
	statusCalls   int
	inFlight      int
	maxInFlight   int
	statusDelay   time.Duration
	statusRelease chan struct{}
}

type statusStep struct {
	status *music.Status
	err    error
}

func (f *fakeAdapter) Name() string         { return "fake" }
func (f *fakeAdapter) HasCredentials() bool { return true }

func (f *fakeAdapter) Submit(ctx context.Context, req music.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.submitTaskID == "" {
		return "task-1", nil
	}
	return f.submitTaskID, nil
}

func (f *fakeAdapter) CheckStatus(ctx context.Context, taskID string) (*music.Status, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	idx := f.statusCalls
	f.statusCalls++
	release := f.statusRelease
	delay := f.statusDelay
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.inFlight--
	var step statusStep
	if len(f.statuses) == 0 {
		step = statusStep{status: &music.Status{State: music.StateRunning}}
	} else if idx >= len(f.statuses) {
		step = f.statuses[len(f.statuses)-1]
	} else {
		step = f.statuses[idx]
	}
	f.mu.Unlock()
	return step.status, step.err
}

func (f *fakeAdapter) calls() (submits, checks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls
}

// countingNotifier records one entry per notification.
type countingNotifier struct {
	mu   sync.Mutex
	jobs []domain.GenerationJob
}

func (n *countingNotifier) Notify(job domain.GenerationJob) {
	n.mu.Lock()
	n.jobs = append(n.jobs, job)
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

// memoryRepo is an in-memory domain.JobRepository.
type memoryRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.GenerationJob
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[string]domain.GenerationJob)}
}

func (r *memoryRepo) Upsert(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.GenerationJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (r *memoryRepo) Delete(ctx context.Context, jobIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range jobIDs {
		delete(r.jobs, id)
	}
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testService(t *testing.T, adapter music.Adapter, cfg Config) (*Service, *registry.Registry, *countingNotifier) {
	t.Helper()
	reg := registry.New()
	notifier := &countingNotifier{}
	svc := New(cfg, Deps{
		Adapters: map[domain.Service]music.Adapter{domain.ServiceSuno: adapter, domain.ServiceMureka: adapter},
		Registry: reg,
		Notifier: notifier,
		Logger:   testLogger(),
	})
	t.Cleanup(svc.Close)
	return svc, reg, notifier
}

func descriptionInput() domain.GenerationInput {
	return domain.GenerationInput{
		Service: domain.ServiceSuno,
		Type:    domain.InputDescription,
		Prompt:  "upbeat pop song",
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSubmitValidationFailsBeforeNetwork(t *testing.T) {
	adapter := &fakeAdapter{}
	svc, reg, _ := testService(t, adapter, Config{})

	_, err := svc.Submit(context.Background(), domain.GenerationInput{
		Service: domain.ServiceSuno,
		Type:    domain.InputDescription,
		Prompt:  "   ",
	}, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if submits, _ := adapter.calls(); submits != 0 {
		t.Errorf("submit reached the adapter %d times", submits)
	}
	if len(reg.List()) != 0 {
		t.Error("a job was created for invalid input")
	}
}

type noCredsAdapter struct{ fakeAdapter }

func (*noCredsAdapter) HasCredentials() bool { return false }

func TestSubmitWithoutCredentials(t *testing.T) {
	adapter := &noCredsAdapter{}
	svc, reg, _ := testService(t, adapter, Config{})

	_, err := svc.Submit(context.Background(), descriptionInput(), "")
	if !errors.Is(err, domain.ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}
	if len(reg.List()) != 0 {
		t.Error("a job was created without credentials")
	}
}

func TestSubmitSeedsQueuedJob(t *testing.T) {
	adapter := &fakeAdapter{
		submitTaskID: "task-42",
		// Keep the poller parked so we can observe the queued state.
		statusRelease: make(chan struct{}),
	}
	svc, reg, _ := testService(t, adapter, Config{PollInterval: time.Hour, PollTimeout: time.Hour})

	jobID, err := svc.Submit(context.Background(), descriptionInput(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, ok := reg.Get(jobID)
	if !ok {
		t.Fatal("job missing from registry")
	}
	if job.Status != domain.StatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.ExternalTaskID != "task-42" {
		t.Errorf("task id = %q", job.ExternalTaskID)
	}
	if job.OverallProgress != domain.ProgressQueued {
		t.Errorf("progress = %d, want %d", job.OverallProgress, domain.ProgressQueued)
	}
	if job.Input.Title == "" {
		t.Error("default title not derived from prompt")
	}
}

func TestSubmitFailureMarksJobFailed(t *testing.T) {
	adapter := &fakeAdapter{submitErr: &music.APIError{StatusCode: 402, Message: "insufficient credits"}}
	svc, reg, notifier := testService(t, adapter, Config{})

	jobID, err := svc.Submit(context.Background(), descriptionInput(), "")
	if err == nil {
		t.Fatal("expected submit error")
	}
	if jobID == "" {
		t.Fatal("job id must exist even for failed submits")
	}
	job, _ := reg.Get(jobID)
	if job.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.OverallProgress != 0 {
		t.Errorf("progress = %d, want 0", job.OverallProgress)
	}
	if got := job.Step(domain.StepQueue); got != domain.StepError {
		t.Errorf("queue step = %s, want error", got)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	// No automatic resubmit.
	time.Sleep(20 * time.Millisecond)
	if submits, _ := adapter.calls(); submits != 1 {
		t.Errorf("submit called %d times, want 1", submits)
	}
}

func TestPollDrivesJobToCompletion(t *testing.T) {
	adapter := &fakeAdapter{
		statuses: []statusStep{
			{status: &music.Status{State: music.StateRunning}},
			{status: &music.Status{State: music.StateSucceeded, ResultURL: "https://cdn.example.com/track.mp3"}},
		},
	}
	svc, reg, notifier := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute})

	jobID, err := svc.Submit(context.Background(), descriptionInput(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		job, _ := reg.Get(jobID)
		return job.Status == domain.StatusCompleted
	})

	job, _ := reg.Get(jobID)
	if job.OverallProgress != 100 {
		t.Errorf("progress = %d, want 100", job.OverallProgress)
	}
	if job.ResultURL != "https://cdn.example.com/track.mp3" {
		t.Errorf("result url = %q", job.ResultURL)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want exactly 1", notifier.count())
	}
	// Polling stops after the terminal state.
	_, checksAtTerminal := adapter.calls()
	time.Sleep(50 * time.Millisecond)
	if _, checks := adapter.calls(); checks != checksAtTerminal {
		t.Errorf("polling continued after completion: %d -> %d", checksAtTerminal, checks)
	}
}

func TestFirstPollFiresImmediately(t *testing.T) {
	adapter := &fakeAdapter{
		statuses: []statusStep{
			{status: &music.Status{State: music.StateSucceeded, ResultURL: "u"}},
		},
	}
	// With an hour-long interval, completion only happens if the first check
	// does not wait for a tick.
	svc, reg, _ := testService(t, adapter, Config{PollInterval: time.Hour, PollTimeout: 2 * time.Hour})

	jobID, err := svc.Submit(context.Background(), descriptionInput(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		job, _ := reg.Get(jobID)
		return job.Status == domain.StatusCompleted
	})
}

func TestTransientPollErrorsAreRetried(t *testing.T) {
	adapter := &fakeAdapter{
		statuses: []statusStep{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{status: &music.Status{State: music.StateSucceeded, ResultURL: "u"}},
		},
	}
	svc, reg, notifier := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	waitFor(t, 2*time.Second, func() bool {
		job, _ := reg.Get(jobID)
		return job.Status == domain.StatusCompleted
	})
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestExplicitRemoteFailureTerminates(t *testing.T) {
	adapter := &fakeAdapter{
		statuses: []statusStep{
			{status: &music.Status{State: music.StateFailed, Message: "content policy violation"}},
		},
	}
	svc, reg, notifier := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	waitFor(t, 2*time.Second, func() bool {
		job, _ := reg.Get(jobID)
		return job.Status == domain.StatusFailed
	})
	job, _ := reg.Get(jobID)
	if job.ErrorDetail != "content policy violation" {
		t.Errorf("error detail = %q", job.ErrorDetail)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestTimeoutFiresAtCeiling(t *testing.T) {
	adapter := &fakeAdapter{} // always running, never terminal
	ceiling := 120 * time.Millisecond
	svc, reg, notifier := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: ceiling})

	start := time.Now()
	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	waitFor(t, 2*time.Second, func() bool {
		job, _ := reg.Get(jobID)
		return job.Status == domain.StatusTimeout
	})
	elapsed := time.Since(start)
	if elapsed < ceiling {
		t.Errorf("timeout fired after %v, before the %v ceiling", elapsed, ceiling)
	}
	if elapsed > ceiling+time.Second {
		t.Errorf("timeout fired %v after the ceiling", elapsed-ceiling)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	_, checksAtTimeout := adapter.calls()
	time.Sleep(50 * time.Millisecond)
	if _, checks := adapter.calls(); checks != checksAtTimeout {
		t.Error("polling continued after timeout")
	}
}

func TestCancelDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	adapter := &fakeAdapter{
		statusRelease: release,
		statuses: []statusStep{
			{status: &music.Status{State: music.StateSucceeded, ResultURL: "https://late.example.com"}},
		},
	}
	svc, reg, notifier := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	// Wait until the first status request is in flight, then cancel.
	waitFor(t, 2*time.Second, func() bool {
		_, checks := adapter.calls()
		return checks > 0
	})
	if err := svc.Cancel(jobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(release)

	job, _ := reg.Get(jobID)
	if job.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	// Give the late response time to land; it must be a no-op.
	time.Sleep(50 * time.Millisecond)
	job, _ = reg.Get(jobID)
	if job.Status != domain.StatusCancelled || job.ResultURL != "" {
		t.Errorf("late response applied: %+v", job)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1 (for the cancel)", notifier.count())
	}
}

func TestCancelTerminalJob(t *testing.T) {
	adapter := &fakeAdapter{submitErr: errors.New("boom")}
	svc, _, _ := testService(t, adapter, Config{})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	if err := svc.Cancel(jobID); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("err = %v, want ErrJobTerminal", err)
	}
	if err := svc.Cancel("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSingleInFlightPollPerJob(t *testing.T) {
	adapter := &fakeAdapter{statusDelay: 30 * time.Millisecond}
	svc, reg, _ := testService(t, adapter, Config{PollInterval: 5 * time.Millisecond, PollTimeout: time.Minute})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	waitFor(t, 2*time.Second, func() bool {
		_, checks := adapter.calls()
		return checks >= 4
	})
	if err := svc.Cancel(jobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if job, _ := reg.Get(jobID); job.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", job.Status)
	}
	adapter.mu.Lock()
	maxInFlight := adapter.maxInFlight
	adapter.mu.Unlock()
	if maxInFlight > 1 {
		t.Fatalf("max in-flight polls = %d, want 1", maxInFlight)
	}
}

func TestRetryCreatesNewJob(t *testing.T) {
	adapter := &fakeAdapter{submitErr: &music.APIError{StatusCode: 500, Message: "upstream down"}}
	svc, reg, _ := testService(t, adapter, Config{PollInterval: time.Hour, PollTimeout: time.Hour})

	failedID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	failedJob, _ := reg.Get(failedID)

	adapter.mu.Lock()
	adapter.submitErr = nil
	adapter.submitTaskID = "task-retry"
	adapter.statusRelease = make(chan struct{})
	adapter.mu.Unlock()

	retryID, err := svc.Retry(context.Background(), failedID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retryID == failedID {
		t.Fatal("retry reused the original job id")
	}
	retryJob, ok := reg.Get(retryID)
	if !ok {
		t.Fatal("retry job missing")
	}
	if retryJob.Input.Prompt != failedJob.Input.Prompt {
		t.Error("retry did not reuse the input snapshot")
	}
	// Original record unchanged.
	original, _ := reg.Get(failedID)
	if original.Status != domain.StatusFailed || original.UpdatedAt != failedJob.UpdatedAt {
		t.Errorf("original job mutated by retry: %+v", original)
	}
}

func TestRetryActiveJobRejected(t *testing.T) {
	adapter := &fakeAdapter{statusRelease: make(chan struct{})}
	svc, _, _ := testService(t, adapter, Config{PollInterval: time.Hour, PollTimeout: time.Hour})

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	if _, err := svc.Retry(context.Background(), jobID); !errors.Is(err, domain.ErrJobActive) {
		t.Fatalf("err = %v, want ErrJobActive", err)
	}
}

func TestClearTerminalRemovesFromRepo(t *testing.T) {
	adapter := &fakeAdapter{submitErr: errors.New("boom")}
	repo := newMemoryRepo()
	reg := registry.New()
	svc := New(Config{}, Deps{
		Adapters: map[domain.Service]music.Adapter{domain.ServiceSuno: adapter},
		Registry: reg,
		Repo:     repo,
		Logger:   testLogger(),
	})
	defer svc.Close()

	jobID, _ := svc.Submit(context.Background(), descriptionInput(), "")
	if _, err := repo.GetByID(context.Background(), jobID); err != nil {
		t.Fatalf("job not persisted: %v", err)
	}

	removed := svc.ClearTerminal(context.Background(), registry.ClearOptions{})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := reg.Get(jobID); ok {
		t.Error("job still in registry")
	}
	if _, err := repo.GetByID(context.Background(), jobID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("job still in repo: %v", err)
	}
}

func TestResumeRestartsActivePolling(t *testing.T) {
	adapter := &fakeAdapter{
		statuses: []statusStep{
			{status: &music.Status{State: music.StateSucceeded, ResultURL: "u"}},
		},
	}
	repo := newMemoryRepo()
	reg := registry.New()

	// A job persisted by a previous process: queued with a task id.
	job := domain.NewJob("resumed", descriptionInput(), time.Now())
	job, _ = domain.Transition(job, domain.Event{Kind: domain.EventAccepted, TaskID: "task-old"})
	_ = repo.Upsert(context.Background(), &job)

	// And one that never got accepted before the restart.
	orphan := domain.NewJob("orphan", descriptionInput(), time.Now())
	_ = repo.Upsert(context.Background(), &orphan)

	svc := New(Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute}, Deps{
		Adapters: map[domain.Service]music.Adapter{domain.ServiceSuno: adapter},
		Registry: reg,
		Repo:     repo,
		Logger:   testLogger(),
	})
	defer svc.Close()

	if err := svc.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		j, _ := reg.Get("resumed")
		return j.Status == domain.StatusCompleted
	})
	orphanJob, _ := reg.Get("orphan")
	if orphanJob.Status != domain.StatusFailed {
		t.Errorf("orphan status = %s, want failed", orphanJob.Status)
	}
}

func TestCloseStopsPollers(t *testing.T) {
	adapter := &fakeAdapter{}
	svc, _, _ := testService(t, adapter, Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Minute})

	_, _ = svc.Submit(context.Background(), descriptionInput(), "")
	waitFor(t, 2*time.Second, func() bool {
		_, checks := adapter.calls()
		return checks > 0
	})
	svc.Close()
	_, after := adapter.calls()
	time.Sleep(50 * time.Millisecond)
	if _, checks := adapter.calls(); checks != after {
		t.Error("polling continued after Close")
	}
}
