package suno

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
)

func TestSubmitMapsDescriptionInput(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"msg":  "success",
			"data": map[string]any{"taskId": "task-abc"},
		})
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "test-key", BaseURL: server.URL})
	taskID, err := client.Submit(context.Background(), music.GenerateRequest{
		Kind:   "description",
		Prompt: "upbeat pop song",
		Style:  []string{"pop", "synth"},
		Title:  "Summer Nights",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if taskID != "task-abc" {
		t.Fatalf("task id = %q, want task-abc", taskID)
	}
	if captured.Prompt != "upbeat pop song" {
		t.Errorf("prompt = %q", captured.Prompt)
	}
	if captured.Style != "pop, synth" {
		t.Errorf("style = %q", captured.Style)
	}
	if captured.CustomMode {
		t.Error("description input must not enable custom mode")
	}
	if captured.Model != defaultModel {
		t.Errorf("model = %q, want default", captured.Model)
	}
}

func TestSubmitMapsLyricsInputToCustomMode(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200, "data": map[string]any{"taskId": "task-1"},
		})
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "k", BaseURL: server.URL})
	_, err := client.Submit(context.Background(), music.GenerateRequest{
		Kind:   "lyrics",
		Lyrics: "verse one\nchorus",
		Prompt: "ignored",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !captured.CustomMode {
		t.Error("lyrics input must enable custom mode")
	}
	if captured.Prompt != "verse one\nchorus" {
		t.Errorf("prompt = %q, want lyrics text", captured.Prompt)
	}
}

func TestSubmitWithoutCredentials(t *testing.T) {
	client := NewClient(Options{})
	_, err := client.Submit(context.Background(), music.GenerateRequest{Kind: "description", Prompt: "x"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestSubmitErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 429, "msg": "insufficient credits",
		})
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "k", BaseURL: server.URL})
	_, err := client.Submit(context.Background(), music.GenerateRequest{Kind: "description", Prompt: "x"})
	var apiErr *music.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Code != "429" {
		t.Errorf("code = %q, want 429", apiErr.Code)
	}
}

func TestCheckStatusNormalization(t *testing.T) {
	cases := []struct {
		name     string
		body     map[string]any
		want     music.State
		wantURL  string
		wantMsg  string
		wantProg int
	}{
		{
			name: "pending",
			body: map[string]any{"status": "PENDING"},
			want: music.StatePending,
		},
		{
			name:     "text ready",
			body:     map[string]any{"status": "TEXT_SUCCESS"},
			want:     music.StateRunning,
			wantProg: 50,
		},
		{
			name: "success with audio",
			body: map[string]any{
				"status": "SUCCESS",
				"response": map[string]any{
					"sunoData": []any{map[string]any{"audioUrl": "https://cdn.suno.example/track.mp3"}},
				},
			},
			want:    music.StateSucceeded,
			wantURL: "https://cdn.suno.example/track.mp3",
		},
		{
			name:     "success without audio stays running",
			body:     map[string]any{"status": "SUCCESS"},
			want:     music.StateRunning,
			wantProg: 90,
		},
		{
			name:    "failed with message",
			body:    map[string]any{"status": "GENERATE_AUDIO_FAILED", "errorMessage": "content policy"},
			want:    music.StateFailed,
			wantMsg: "content policy",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("taskId"); got != "task-9" {
					t.Errorf("taskId = %q", got)
				}
				raw, _ := json.Marshal(tc.body)
				_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": json.RawMessage(raw)})
			}))
			defer server.Close()

			client := NewClient(Options{APIKey: "k", BaseURL: server.URL})
			status, err := client.CheckStatus(context.Background(), "task-9")
			if err != nil {
				t.Fatalf("check status: %v", err)
			}
			if status.State != tc.want {
				t.Errorf("state = %s, want %s", status.State, tc.want)
			}
			if status.ResultURL != tc.wantURL {
				t.Errorf("result url = %q, want %q", status.ResultURL, tc.wantURL)
			}
			if status.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", status.Message, tc.wantMsg)
			}
			if status.Progress != tc.wantProg {
				t.Errorf("progress = %d, want %d", status.Progress, tc.wantProg)
			}
		})
	}
}
