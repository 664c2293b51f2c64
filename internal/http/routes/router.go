package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/chromenv/internal/http/mw"
)

// publicPaths are served without the control token.
var publicPaths = []string{Prefix + "/health", "/docs", "/openapi.json", "/openapi.yaml", "/schemas"}

// Options configures the router.
type Options struct {
	ControlToken      string
	CORSOrigins       []string
	RequestTimeout    time.Duration
	RequestsPerMinute int
	Metrics           prometheus.Gatherer
	Logger            *slog.Logger
}

// NewRouter builds the control API router with its middleware chain.
func NewRouter(opts Options, h *Handlers) http.Handler {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 600
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.RequestLogging())
	if opts.Logger != nil {
		router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(opts.Logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}))
	}
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:      opts.RequestTimeout,
		SkipPatterns: []string{"/events"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", mw.TokenHeader},
		ExposedHeaders:   []string{"X-Request-ID", mw.VersionHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))

	router.Group(func(r chi.Router) {
		r.Use(mw.ControlToken(opts.ControlToken, publicPaths...))

		if opts.Metrics != nil {
			r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
		}

		api := humachi.New(r, NewHumaConfig())
		Register(api, h)
	})

	return router
}
