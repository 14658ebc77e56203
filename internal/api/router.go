package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tfl-lake/internal/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
	Logger             *slog.Logger
}

// NewRouter mounts h on a chi router. /healthz is exempt from rate limiting.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(opts.Logger.With("component", "http")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID, "Location"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(opts.RateLimit))
		r.Get("/environment", h.GetEnvironment)
		r.Get("/jobs", h.ListJobs)
		r.Get("/runs", h.ListRuns)
		r.Post("/runs", h.StartRun)
		r.Get("/runs/{id}", h.GetRun)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{
			Code:      http.StatusNotFound,
			Message:   "no route for " + req.Method + " " + req.URL.Path,
			RequestID: middleware.RequestIDFromContext(req.Context()),
		})
	})
	return r
}
