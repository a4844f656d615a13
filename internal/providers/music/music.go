// Package music defines the provider-neutral contract for external song
// generation services. Each provider speaks its own payload shapes; adapters
// normalize both directions so the tracking core never branches on provider
// quirks.
package music

import (
	"context"
	"fmt"
)

// GenerateRequest is the generic submission payload an adapter maps into its
// provider-specific create call. The mapping is stateless, so resubmitting
// the same request for a retry produces the same payload.
type GenerateRequest struct {
	Kind            string // "description" or "lyrics"
	Prompt          string
	Lyrics          string
	Title           string
	Style           []string
	Instrumental    bool
	Model           string
	DurationSeconds int
	RequestID       string
}

// State is the normalized remote task state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is the normalized result of one status query.
type Status struct {
	State     State
	ResultURL string
	Message   string
	// Progress is a provider-reported percentage hint, 0 when the provider
	// exposes none.
	Progress int
}

// Adapter is implemented once per provider.
type Adapter interface {
	Name() string
	HasCredentials() bool
	// Submit creates the remote generation task and returns its identifier.
	Submit(ctx context.Context, req GenerateRequest) (string, error)
	// CheckStatus performs a single status query for a previously submitted
	// task.
	CheckStatus(ctx context.Context, taskID string) (*Status, error)
}

// APIError is a remote error envelope decoded from a provider response. It
// distinguishes "the service told us no" from transport failures.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("provider error: status %d", e.StatusCode)
}
