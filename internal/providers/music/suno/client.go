// Package suno integrates the Suno generation API. Suno keys tasks by a
// taskId string, reports coarse stage strings from a record-info endpoint,
// and returns the rendered clips as an audio URL list.
package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("suno: api key is required")

const defaultModel = "V4_5"

// Options configures the Suno client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Suno API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Response struct {
		SunoData []struct {
			AudioURL       string `json:"audioUrl"`
			StreamAudioURL string `json:"streamAudioUrl"`
			Title          string `json:"title"`
			Duration       int    `json:"duration"`
		} `json:"sunoData"`
	} `json:"response"`
	ErrorMessage string `json:"errorMessage"`
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
		baseURL = "https://api.sunoapi.org"
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
func (c *Client) Name() string { return "suno" }

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool { return c.apiKey != "" }

// Submit creates a generation task. Description inputs use Suno's prompt
// mode; lyrics inputs switch to custom mode where the prompt field carries
// the lyrics verbatim.
func (c *Client) Submit(ctx context.Context, req music.GenerateRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	payload := generateRequest{
		Prompt:       strings.TrimSpace(req.Prompt),
		Style:        strings.Join(req.Style, ", "),
		Title:        strings.TrimSpace(req.Title),
		Instrumental: req.Instrumental,
		Model:        c.model,
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		payload.Model = m
	}
	if req.Kind == "lyrics" {
		payload.CustomMode = true
		payload.Prompt = strings.TrimSpace(req.Lyrics)
	}
	if payload.Prompt == "" {
		return "", errors.New("suno: prompt is required")
	}

	var data generateData
	if err := c.call(ctx, http.MethodPost, "/api/v1/generate", payload, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", errors.New("suno: response missing task id")
	}
	c.logger.Debug().Str("task_id", data.TaskID).Str("request_id", req.RequestID).Msg("suno: task created")
	return data.TaskID, nil
}

// CheckStatus queries record-info for the task and normalizes the stage
// strings Suno reports.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (*music.Status, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("suno: task id is required")
	}
	path := "/api/v1/generate/record-info?taskId=" + url.QueryEscape(taskID)
	var data recordInfoData
	if err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	status := &music.Status{Message: data.ErrorMessage}
	switch data.Status {
	case "SUCCESS":
		status.State = music.StateSucceeded
		status.ResultURL = firstAudioURL(data)
		if status.ResultURL == "" {
			// Success without audio means the render is not actually done.
			status.State = music.StateRunning
			status.Progress = 90
		}
	case "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "SENSITIVE_WORD_ERROR", "CALLBACK_EXCEPTION":
		status.State = music.StateFailed
	case "PENDING":
		status.State = music.StatePending
	case "TEXT_SUCCESS":
		status.State = music.StateRunning
		status.Progress = 50
	case "FIRST_SUCCESS":
		status.State = music.StateRunning
		status.Progress = 80
	default:
		status.State = music.StateRunning
	}
	return status, nil
}

func firstAudioURL(data recordInfoData) string {
	for _, clip := range data.Response.SunoData {
		if clip.AudioURL != "" {
			return clip.AudioURL
		}
		if clip.StreamAudioURL != "" {
			return clip.StreamAudioURL
		}
	}
	return ""
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("suno: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("suno: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("suno: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("suno: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Msg != "" {
			return &music.APIError{StatusCode: resp.StatusCode, Code: fmt.Sprint(env.Code), Message: "suno: " + env.Msg}
		}
		return &music.APIError{StatusCode: resp.StatusCode, Message: "suno: " + strings.TrimSpace(string(raw))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("suno: decode response: %w", err)
	}
	// Suno wraps everything in {code,msg,data}; 200 is the in-band success code.
	if env.Code != 0 && env.Code != 200 {
		return &music.APIError{StatusCode: resp.StatusCode, Code: fmt.Sprint(env.Code), Message: "suno: " + env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("suno: decode data: %w", err)
		}
	}
	return nil
}

var _ music.Adapter = (*Client)(nil)
