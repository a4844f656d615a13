package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxTrackBytes caps a single downloaded track at 50 MiB.
const maxTrackBytes = 50 << 20

// Archiver downloads a completed track from the provider's CDN and writes it
// into the blob store so the result outlives the provider-side URL.
type Archiver struct {
	store      Store
	httpClient *http.Client
}

// NewArchiver wires an archiver over the given store.
func NewArchiver(store Store, httpClient *http.Client) *Archiver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Archiver{store: store, httpClient: httpClient}
}

// ArchiveTrack fetches the audio at resultURL and stores it under a key
// derived from the job id. It returns the storage key.
func (a *Archiver) ArchiveTrack(ctx context.Context, jobID, resultURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return "", fmt.Errorf("archive: build request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("archive: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes+1))
	if err != nil {
		return "", fmt.Errorf("archive: read body: %w", err)
	}
	if len(data) > maxTrackBytes {
		return "", fmt.Errorf("archive: track exceeds %d bytes", maxTrackBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("archive: empty response body")
	}

	key := fmt.Sprintf("tracks/%s/track%s", jobID, extensionFor(resp.Header.Get("Content-Type"), resultURL))
	return a.store.Write(ctx, key, data)
}

func extensionFor(contentType, resultURL string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	}
	lower := strings.ToLower(resultURL)
	for _, ext := range []string{".mp3", ".wav", ".flac"} {
		if strings.Contains(lower, ext) {
			return ext
		}
	}
	return ".mp3"
}
