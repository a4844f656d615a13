package handlers

import (
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/pkg/zip"
)

type trackView struct {
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	Service     string    `json:"service"`
	ResultURL   string    `json:"result_url"`
	ArchiveKey  string    `json:"archive_key,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// TracksList returns the completed generations as a flat track list.
func (a *App) TracksList(w http.ResponseWriter, r *http.Request) {
	items := []trackView{}
	for _, job := range a.Registry.List() {
		if job.Status != domain.StatusCompleted {
			continue
		}
		items = append(items, trackView{
			JobID:       job.ID,
			Title:       job.Input.Title,
			Service:     string(job.Service),
			ResultURL:   job.ResultURL,
			ArchiveKey:  job.ArchiveKey,
			CompletedAt: job.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// TrackDownload streams the archived audio for one completed job.
func (a *App) TrackDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Generator.Lookup(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if job.Status != domain.StatusCompleted || job.ArchiveKey == "" {
		a.error(w, http.StatusNotFound, "not_found", "no archived track for this job")
		return
	}
	if a.Store == nil {
		a.error(w, http.StatusNotFound, "not_found", "archival storage not configured")
		return
	}
	data, err := a.Store.Read(r.Context(), job.ArchiveKey)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: read archived track failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load track")
		return
	}
	w.Header().Set("Content-Type", contentTypeForTrack(job.ArchiveKey))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s%s", jobID, path.Ext(job.ArchiveKey)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// TracksZip packs every archived completed track into one zip download.
func (a *App) TracksZip(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		a.error(w, http.StatusNotFound, "not_found", "archival storage not configured")
		return
	}
	var tracks []zip.Track
	for _, job := range a.Registry.List() {
		if job.Status != domain.StatusCompleted || job.ArchiveKey == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), job.ArchiveKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("handlers: skip unreadable track in zip")
			continue
		}
		name := job.Input.Title
		if name == "" {
			name = job.ID
		}
		tracks = append(tracks, zip.Track{Filename: name + path.Ext(job.ArchiveKey), Data: data})
	}
	if len(tracks) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no archived tracks")
		return
	}
	archive := zip.ArchiveTracks(tracks)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=tracks.zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func contentTypeForTrack(key string) string {
	switch path.Ext(key) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
