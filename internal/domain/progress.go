package domain

import "time"

// DisplayProgress returns a smoothed percentage for rendering progress bars.
// The smoothing is strictly cosmetic: it interpolates from the authoritative
// OverallProgress toward the estimated completion time, is capped below 100,
// and is never written back to the job. Only poll responses move the real
// progress.
func DisplayProgress(j GenerationJob, now time.Time) int {
	if j.Status.Terminal() {
		return j.OverallProgress
	}
	total := j.EstimatedCompletion.Sub(j.CreatedAt)
	if total <= 0 {
		return j.OverallProgress
	}
	elapsed := now.Sub(j.CreatedAt)
	if elapsed <= 0 {
		return j.OverallProgress
	}
	estimated := int(float64(elapsed) / float64(total) * 95)
	if estimated > 95 {
		estimated = 95
	}
	if estimated < j.OverallProgress {
		return j.OverallProgress
	}
	return estimated
}
