package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/http/handlers"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/middleware"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/ws"
)

// Options configures the middleware chain.
type Options struct {
	Logger             infra.Logger
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, hub *ws.Hub, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.GenerationsCreate)
		r.Get("/", app.GenerationsList)
		r.Delete("/", app.GenerationsClear)
		r.Get("/{job_id}", app.GenerationsGet)
		r.Post("/{job_id}/cancel", app.GenerationsCancel)
		r.Post("/{job_id}/retry", app.GenerationsRetry)
	})

	r.Route("/v1/tracks", func(r chi.Router) {
		r.Get("/", app.TracksList)
		r.Get("/archive", app.TracksZip)
		r.Get("/{job_id}/download", app.TrackDownload)
	})

	if hub != nil {
		r.Get("/v1/ws", hub.ServeHTTP)
	}

	return r
}
