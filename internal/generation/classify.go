package generation

import (
	"context"
	"errors"
	"net"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
)

// ErrorKind buckets submission failures for logging and API responses.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorNetwork    ErrorKind = "network"
	ErrorAPI        ErrorKind = "api"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorUnknown    ErrorKind = "unknown"
)

// Classify maps an error to its kind. Validation errors never reach the
// network; API errors carry a decoded provider envelope; exceeded request
// deadlines are timeouts; everything else transport-shaped is network.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, domain.ErrValidation) {
		return ErrorValidation
	}
	var apiErr *music.APIError
	if errors.As(err, &apiErr) {
		return ErrorAPI
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetwork
	}
	return ErrorUnknown
}
