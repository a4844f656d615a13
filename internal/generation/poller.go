package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
)

// startPoller launches the polling loop for a queued job. At most one loop
// runs per job id; a second call is a no-op while the first is alive.
func (s *Service) startPoller(job domain.GenerationJob) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, running := s.cancels[job.ID]; running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[job.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	// The ceiling is armed relative to submission time, so a job resumed
	// after a restart only gets its remaining budget.
	deadline := job.CreatedAt.Add(s.cfg.PollTimeout)
	go s.pollLoop(ctx, job.ID, job.Service, job.ExternalTaskID, deadline)
}

// stopPoller cancels the loop (and any in-flight request) for the job.
func (s *Service) stopPoller(jobID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	if ok {
		delete(s.cancels, jobID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// pollLoop checks the remote status until the job reaches a terminal state,
// the ceiling expires, or the loop is cancelled. The first check fires
// immediately; after that checks are strictly serial on a fixed interval,
// so at most one status request per job is ever outstanding.
func (s *Service) pollLoop(ctx context.Context, jobID string, svc domain.Service, taskID string, deadline time.Time) {
	defer s.wg.Done()
	defer s.stopPoller(jobID)

	adapter, ok := s.adapters[svc]
	if !ok {
		s.logger.Error().Str("job_id", jobID).Str("service", string(svc)).Msg("poller: no adapter")
		return
	}

	until := deadline.Sub(s.now())
	if until <= 0 {
		job, change := s.apply(jobID, domain.Event{Kind: domain.EventTimeout, At: s.now()})
		s.react(job, change)
		return
	}
	timeout := time.NewTimer(until)
	defer timeout.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	if s.checkOnce(ctx, jobID, adapter, taskID) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			job, change := s.apply(jobID, domain.Event{Kind: domain.EventTimeout, At: s.now()})
			s.react(job, change)
			return
		case <-ticker.C:
			if s.checkOnce(ctx, jobID, adapter, taskID) {
				return
			}
		}
	}
}

// checkOnce performs a single status request and applies the outcome. It
// returns true when the loop should stop. Transport-level failures are
// logged and retried on the next tick; only an explicit failure from the
// service terminates the job here.
func (s *Service) checkOnce(ctx context.Context, jobID string, adapter music.Adapter, taskID string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	status, err := adapter.CheckStatus(reqCtx, taskID)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			// The loop was cancelled mid-request; the job is already marked.
			return true
		}
		var apiErr *music.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			// The service rejected the task itself, not the transport.
			job, change := s.apply(jobID, domain.Event{Kind: domain.EventFailed, ErrorDetail: apiErr.Message, At: s.now()})
			s.react(job, change)
			return true
		}
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("poller: status check failed, retrying next tick")
		return false
	}

	ev := eventFromStatus(status)
	ev.At = s.now()
	job, change := s.apply(jobID, ev)
	if !change.Applied {
		// Terminal elsewhere (cancel raced the response): discard and stop.
		return true
	}
	s.react(job, change)
	return change.Terminal
}

func eventFromStatus(status *music.Status) domain.Event {
	switch status.State {
	case music.StateSucceeded:
		return domain.Event{Kind: domain.EventCompleted, ResultURL: status.ResultURL}
	case music.StateFailed:
		return domain.Event{Kind: domain.EventFailed, ErrorDetail: status.Message}
	default:
		return domain.Event{Kind: domain.EventProgress, Progress: status.Progress}
	}
}
