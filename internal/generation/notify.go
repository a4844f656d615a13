package generation

import (
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
)

// Notifier receives exactly one call per job, at the moment it enters a
// terminal state. Implementations must not block: they run on the poll
// goroutine.
type Notifier interface {
	Notify(job domain.GenerationJob)
}

// LogNotifier reports terminal transitions through the service logger.
type LogNotifier struct {
	logger infra.Logger
}

// NewLogNotifier wraps the logger into a Notifier.
func NewLogNotifier(logger infra.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(job domain.GenerationJob) {
	switch job.Status {
	case domain.StatusCompleted:
		n.logger.Info().
			Str("job_id", job.ID).
			Str("service", string(job.Service)).
			Str("result_url", job.ResultURL).
			Msg("track ready")
	case domain.StatusFailed:
		n.logger.Error().
			Str("job_id", job.ID).
			Str("service", string(job.Service)).
			Str("detail", job.ErrorDetail).
			Msg("generation failed")
	case domain.StatusTimeout:
		n.logger.Error().
			Str("job_id", job.ID).
			Str("service", string(job.Service)).
			Msg("generation timed out")
	case domain.StatusCancelled:
		n.logger.Info().
			Str("job_id", job.ID).
			Msg("generation cancelled")
	}
}
