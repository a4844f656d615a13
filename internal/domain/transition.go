package domain

import "time"

// EventKind identifies what happened to a job.
type EventKind string

const (
	// EventAccepted records that the external service accepted the request
	// and returned a task identifier.
	EventAccepted EventKind = "accepted"
	// EventSubmitFailed records that the create call failed. Submission
	// failures are final; there is no automatic resubmit.
	EventSubmitFailed EventKind = "submit_failed"
	// EventProgress records a non-terminal status response from a poll.
	EventProgress EventKind = "progress"
	// EventCompleted records a terminal success response.
	EventCompleted EventKind = "completed"
	// EventFailed records an explicit failure signal from the service.
	EventFailed EventKind = "failed"
	// EventCancelled records an explicit user cancellation.
	EventCancelled EventKind = "cancelled"
	// EventTimeout records expiry of the polling ceiling.
	EventTimeout EventKind = "timeout"
)

// Event carries the payload of a single lifecycle occurrence.
type Event struct {
	Kind        EventKind
	TaskID      string
	Progress    int // provider progress hint, 0 when unknown
	ResultURL   string
	ErrorDetail string
	At          time.Time
}

// Change describes the outcome of applying an event.
type Change struct {
	Applied bool
	From    Status
	To      Status
	// Terminal is true when this event moved the job into a terminal state.
	// A terminal transition happens at most once per job, which is what lets
	// the notification layer fire exactly one notification.
	Terminal bool
}

// Transition applies an event to a job and returns the updated copy. It is a
// pure function: no clocks, no I/O, no side effects. Events against a
// terminal job are discarded, which is how late poll responses for cancelled
// or timed-out jobs become no-ops.
func Transition(j GenerationJob, ev Event) (GenerationJob, Change) {
	if j.Status.Terminal() {
		return j, Change{From: j.Status, To: j.Status}
	}

	from := j.Status
	switch ev.Kind {
	case EventAccepted:
		j.Status = StatusQueued
		j.ExternalTaskID = ev.TaskID
		j.OverallProgress = raiseProgress(j.OverallProgress, ProgressQueued)
		j.Steps = withStep(j.Steps, StepQueue, StepDone)

	case EventSubmitFailed:
		j.Status = StatusFailed
		j.OverallProgress = 0
		j.ErrorDetail = ev.ErrorDetail
		j.Steps = withStep(j.Steps, StepQueue, StepError)

	case EventProgress:
		j.Status = StatusGenerating
		target := ProgressRunning
		if ev.Progress > target {
			target = ev.Progress
		}
		if target > 99 {
			target = 99
		}
		j.OverallProgress = raiseProgress(j.OverallProgress, target)
		if j.Step(StepGenerate) != StepRunning {
			j.Steps = withStep(j.Steps, StepQueue, StepDone)
			j.Steps = withStep(j.Steps, StepGenerate, StepRunning)
		}

	case EventCompleted:
		j.Status = StatusCompleted
		j.OverallProgress = ProgressComplete
		j.ResultURL = ev.ResultURL
		j.ErrorDetail = ""
		j.Steps = allStepsDone(j.Steps)

	case EventFailed:
		j.Status = StatusFailed
		j.OverallProgress = 0
		j.ErrorDetail = defaultDetail(ev.ErrorDetail, "generation failed")
		if name, ok := runningStep(j.Steps); ok {
			j.Steps = withStep(j.Steps, name, StepError)
		} else {
			j.Steps = withStep(j.Steps, StepGenerate, StepError)
		}

	case EventCancelled:
		j.Status = StatusCancelled
		j.ErrorDetail = defaultDetail(ev.ErrorDetail, "cancelled by user")

	case EventTimeout:
		j.Status = StatusTimeout
		j.ErrorDetail = defaultDetail(ev.ErrorDetail, "generation timed out")
		if name, ok := runningStep(j.Steps); ok {
			j.Steps = withStep(j.Steps, name, StepError)
		}

	default:
		return j, Change{From: from, To: from}
	}

	if !ev.At.IsZero() {
		j.UpdatedAt = ev.At
	}
	return j, Change{
		Applied:  true,
		From:     from,
		To:       j.Status,
		Terminal: j.Status.Terminal(),
	}
}

// raiseProgress keeps OverallProgress monotonically non-decreasing while the
// job is active.
func raiseProgress(current, target int) int {
	if target > current {
		return target
	}
	return current
}

func defaultDetail(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
