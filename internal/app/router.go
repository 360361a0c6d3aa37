package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eventharmony/eventharmony/internal/auth"
	"github.com/eventharmony/eventharmony/internal/events"
	"github.com/eventharmony/eventharmony/internal/meetings"
	"github.com/eventharmony/eventharmony/internal/observability"
	"github.com/eventharmony/eventharmony/internal/users"
	"github.com/eventharmony/eventharmony/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthMiddleware  *auth.Middleware
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	EventsHandler   *events.Handler
	MeetingsHandler *meetings.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with EventHarmony defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	var resolver func(http.Handler) http.Handler
	if params.AuthMiddleware != nil {
		resolver = params.AuthMiddleware.Resolve
	}
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Metrics:  params.Metrics,
		Resolver: resolver,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.EventsHandler != nil {
			r.Route("/events", params.EventsHandler.MountRoutes)
		}
		if params.MeetingsHandler != nil {
			params.MeetingsHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
