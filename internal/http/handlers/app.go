// Package handlers exposes the generation tracker over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/generation"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/storage"
)

type App struct {
	Logger    infra.Logger
	Generator *generation.Service
	Registry  *registry.Registry
	Store     storage.Store
}

func NewApp(logger infra.Logger, gen *generation.Service, reg *registry.Registry, store storage.Store) *App {
	return &App{Logger: logger, Generator: gen, Registry: reg, Store: store}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}
