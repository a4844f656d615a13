// Package mureka integrates the Mureka song API. Mureka keys tasks by a
// numeric id, exposes a per-task query endpoint with lowercase status words,
// and returns rendered songs as a choices list.
package mureka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("mureka: api key is required")

const defaultModel = "auto"

// Options configures the Mureka client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Mureka API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type songRequest struct {
	Lyrics string `json:"lyrics,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

type instrumentalRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type taskResponse struct {
	ID           json.Number `json:"id"`
	Status       string      `json:"status"`
	FailedReason string      `json:"failed_reason"`
	Choices      []struct {
		URL      string  `json:"url"`
		FlacURL  string  `json:"flac_url"`
		Duration float64 `json:"duration"`
		Title    string  `json:"title"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mureka.ai"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "mureka" }

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool { return c.apiKey != "" }

// Submit creates a generation task. Instrumental requests go through the
// dedicated instrumental endpoint; everything else is a song request where
// description inputs become the prompt and lyric inputs the lyrics field.
func (c *Client) Submit(ctx context.Context, req music.GenerateRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	var (
		path    string
		payload any
	)
	if req.Instrumental {
		prompt := promptWithStyle(req.Prompt, req.Style)
		if prompt == "" {
			return "", errors.New("mureka: prompt is required")
		}
		path = "/v1/instrumental/generate"
		payload = instrumentalRequest{Prompt: prompt, Model: model}
	} else {
		song := songRequest{Model: model}
		if req.Kind == "lyrics" {
			song.Lyrics = strings.TrimSpace(req.Lyrics)
			song.Prompt = promptWithStyle("", req.Style)
		} else {
			song.Prompt = promptWithStyle(req.Prompt, req.Style)
		}
		if song.Lyrics == "" && song.Prompt == "" {
			return "", errors.New("mureka: prompt or lyrics required")
		}
		path = "/v1/song/generate"
		payload = song
	}

	var task taskResponse
	if err := c.call(ctx, http.MethodPost, path, payload, &task); err != nil {
		return "", err
	}
	if task.ID.String() == "" {
		return "", errors.New("mureka: response missing task id")
	}
	c.logger.Debug().Str("task_id", task.ID.String()).Str("request_id", req.RequestID).Msg("mureka: task created")
	return task.ID.String(), nil
}

// CheckStatus queries the task and normalizes Mureka's status words.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (*music.Status, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("mureka: task id is required")
	}
	var task taskResponse
	if err := c.call(ctx, http.MethodGet, "/v1/song/query/"+taskID, nil, &task); err != nil {
		return nil, err
	}

	status := &music.Status{Message: task.FailedReason}
	switch task.Status {
	case "succeeded":
		status.State = music.StateSucceeded
		status.ResultURL = firstChoiceURL(task)
	case "failed", "timeouted", "cancelled":
		status.State = music.StateFailed
	case "preparing", "queued":
		status.State = music.StatePending
	case "streaming":
		status.State = music.StateRunning
		status.Progress = 75
	default:
		status.State = music.StateRunning
	}
	return status, nil
}

func promptWithStyle(prompt string, style []string) string {
	parts := make([]string, 0, 2)
	if p := strings.TrimSpace(prompt); p != "" {
		parts = append(parts, p)
	}
	if len(style) > 0 {
		parts = append(parts, strings.Join(style, ", "))
	}
	return strings.Join(parts, ", ")
}

func firstChoiceURL(task taskResponse) string {
	for _, choice := range task.Choices {
		if choice.URL != "" {
			return choice.URL
		}
		if choice.FlacURL != "" {
			return choice.FlacURL
		}
	}
	return ""
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("mureka: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("mureka: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mureka: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mureka: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return &music.APIError{StatusCode: resp.StatusCode, Code: detail.Error.Type, Message: "mureka: " + detail.Error.Message}
		}
		return &music.APIError{StatusCode: resp.StatusCode, Message: "mureka: " + strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("mureka: decode response: %w", err)
		}
	}
	return nil
}

var _ music.Adapter = (*Client)(nil)
