package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linkpulse/linkpulse/internal/handler"
	"github.com/linkpulse/linkpulse/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Fallback *handler.Handler
	Health   *handler.HealthHandler
	Metrics  *handler.MetricsHandler
	Link     *handler.LinkHandler
	Redirect *handler.RedirectHandler
}

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSAllowedOrigins []string
	IsDevelopment      bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(h Handlers, opts RouterOptions, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecureHeaders(opts.IsDevelopment))

	cors := middleware.DefaultCORSConfig()
	if len(opts.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = opts.CORSAllowedOrigins
	}
	r.Use(middleware.CORS(cors))

	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Get("/metrics", h.Metrics.Metrics)

	r.With(middleware.MaxBodySize(middleware.DefaultMaxBodySize)).Post("/shorten", h.Link.Shorten)

	r.Route("/stats/{shortCode}", func(r chi.Router) {
		r.Get("/", h.Link.Stats)
		r.Get("/audit", h.Link.Audit)
		r.Get("/clicks", h.Link.Clicks)
	})

	// Static paths such as /healthz win over the parameter.
	r.Get("/{shortCode}", h.Redirect.Redirect)

	r.NotFound(h.Fallback.NotFound)
	r.MethodNotAllowed(h.Fallback.MethodNotAllowed)

	return r
}
