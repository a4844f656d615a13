package domain

import (
	"fmt"
	"strings"
)

// InputType discriminates how the free-text field should be interpreted.
type InputType string

const (
	InputDescription InputType = "description"
	InputLyrics      InputType = "lyrics"
)

// GenerationInput is the snapshot of the original request parameters. It is
// retained verbatim on the job so a retry can resubmit the same request.
type GenerationInput struct {
	Service         Service   `json:"service"`
	Type            InputType `json:"type"`
	Prompt          string    `json:"prompt,omitempty"`
	Lyrics          string    `json:"lyrics,omitempty"`
	Title           string    `json:"title,omitempty"`
	Style           []string  `json:"style,omitempty"`
	Instrumental    bool      `json:"instrumental,omitempty"`
	Model           string    `json:"model,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
}

// Normalize trims free-text fields and drops empty style tags.
func (in *GenerationInput) Normalize() {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.Lyrics = strings.TrimSpace(in.Lyrics)
	in.Title = strings.TrimSpace(in.Title)
	in.Model = strings.TrimSpace(in.Model)
	tags := in.Style[:0]
	for _, tag := range in.Style {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	in.Style = tags
}

// Validate reports whether the input can be submitted. Failures wrap
// ErrValidation so callers can classify them without string matching.
func (in GenerationInput) Validate() error {
	if !in.Service.Valid() {
		return fmt.Errorf("%w: unsupported service %q", ErrValidation, in.Service)
	}
	switch in.Type {
	case InputDescription:
		if strings.TrimSpace(in.Prompt) == "" {
			return fmt.Errorf("%w: prompt is required", ErrValidation)
		}
	case InputLyrics:
		if strings.TrimSpace(in.Lyrics) == "" {
			return fmt.Errorf("%w: lyrics are required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported input type %q", ErrValidation, in.Type)
	}
	return nil
}
