package domain

import "time"

// Service enumerates the external music generation providers.
type Service string

const (
	ServiceSuno   Service = "suno"
	ServiceMureka Service = "mureka"
)

// Valid reports whether the service is one of the supported providers.
func (s Service) Valid() bool {
	return s == ServiceSuno || s == ServiceMureka
}

// Status enumerates job lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusTimeout    Status = "timeout"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Active reports whether the job still needs scheduled status checks.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusQueued, StatusGenerating:
		return true
	}
	return false
}

// StepName identifies one of the fixed presentation sub-steps of a job.
type StepName string

const (
	StepValidate StepName = "validate"
	StepQueue    StepName = "queue"
	StepGenerate StepName = "generate"
	StepProcess  StepName = "process"
	StepSave     StepName = "save"
)

// StepState enumerates the state of a single sub-step.
type StepState string

const (
	StepPending StepState = "pending"
	StepRunning StepState = "running"
	StepDone    StepState = "done"
	StepError   StepState = "error"
)

// Step is one named sub-step of a generation job. Steps are presentational:
// they are derived from the job status and never drive transitions.
type Step struct {
	Name  StepName  `json:"name"`
	State StepState `json:"state"`
}

// Progress checkpoints shared by the submitter and poller.
const (
	ProgressSeeded   = 10  // job created locally, request not yet accepted
	ProgressQueued   = 40  // external service accepted the job
	ProgressRunning  = 60  // first non-terminal status response observed
	ProgressComplete = 100 // terminal success
)

// GenerationJob tracks one music generation request end to end.
type GenerationJob struct {
	ID                  string          `json:"id"`
	ExternalTaskID      string          `json:"external_task_id,omitempty"`
	Service             Service         `json:"service"`
	Status              Status          `json:"status"`
	OverallProgress     int             `json:"overall_progress"`
	Steps               []Step          `json:"steps"`
	Input               GenerationInput `json:"input"`
	ResultURL           string          `json:"result_url,omitempty"`
	ArchiveKey          string          `json:"archive_key,omitempty"`
	ErrorDetail         string          `json:"error_detail,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	EstimatedCompletion time.Time       `json:"estimated_completion"`
}

// Per-service completion heuristics. Estimates only, never a guarantee.
var completionEstimates = map[Service]time.Duration{
	ServiceSuno:   2 * time.Minute,
	ServiceMureka: 3 * time.Minute,
}

// NewJob seeds a pending job for a validated input. Validation already
// happened by the time the job exists, so the validate step is done and the
// queue step is running.
func NewJob(id string, input GenerationInput, now time.Time) GenerationJob {
	estimate := completionEstimates[input.Service]
	if estimate == 0 {
		estimate = 2 * time.Minute
	}
	return GenerationJob{
		ID:              id,
		Service:         input.Service,
		Status:          StatusPending,
		OverallProgress: ProgressSeeded,
		Steps: []Step{
			{Name: StepValidate, State: StepDone},
			{Name: StepQueue, State: StepRunning},
			{Name: StepGenerate, State: StepPending},
			{Name: StepProcess, State: StepPending},
			{Name: StepSave, State: StepPending},
		},
		Input:               input,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: now.Add(estimate),
	}
}

// Step returns the state of the named step, or StepPending when absent.
func (j GenerationJob) Step(name StepName) StepState {
	for _, s := range j.Steps {
		if s.Name == name {
			return s.State
		}
	}
	return StepPending
}

func withStep(steps []Step, name StepName, state StepState) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	for i := range out {
		if out[i].Name == name {
			out[i].State = state
		}
	}
	return out
}

// runningStep returns the name of the step currently running, if any.
func runningStep(steps []Step) (StepName, bool) {
	for _, s := range steps {
		if s.State == StepRunning {
			return s.Name, true
		}
	}
	return "", false
}

func allStepsDone(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	for i := range out {
		out[i].State = StepDone
	}
	return out
}
