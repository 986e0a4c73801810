// Package http exposes the ledger over a JSON API.
//
// Middleware stack, outermost first:
//
//	RequestID, Recoverer  chi built-ins
//	trace                 request id in context and header, access log, counters
//	security headers      JSON-API hardening headers
//	CORS                  configured origins only
//	logger                request-scoped logger in the context
//
// Everything under /api additionally requires the X-User-ID header and is
// rate limited per user (per client IP before authentication).
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"networth/internal/log"
	"networth/internal/middleware/ratelimit"
	"networth/internal/middleware/security"
	"networth/internal/middleware/trace"
)

// Deps are the services behind the API.
type Deps struct {
	Transactions TransactionManager
	Dashboard    DashboardProvider
	Intake       IntakeDispatcher
	Directory    Directory
	Health       HealthChecker
}

type ServerConfig struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// TrustedProxies are CIDRs allowed to set forwarding headers. Empty means
	// loopback and private ranges.
	TrustedProxies []string
	Logger         *log.Logger
}

type Server struct {
	http.Server

	clientIP *clientIPResolver
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg ServerConfig, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	clientIP, err := newClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		httpLogger.Warn("Ignoring trusted proxies, using defaults", "error", err)
		clientIP, _ = newClientIPResolver(nil)
	}

	s := &Server{
		clientIP: clientIP,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(httpLogger, clientIP.resolve),
	}
	h := &Handler{
		transactions: deps.Transactions,
		dashboard:    deps.Dashboard,
		intake:       deps.Intake,
		directory:    deps.Directory,
		health:       deps.Health,
		logger:       log.NewStructuredLogger(httpLogger),
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(h, httpLogger, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(h *Handler, logger *log.Logger, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.Headers(security.DefaultConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", userIDHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(log.Middleware(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.clientIP.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
		r.Use(requireUser)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/dashboard", h.Dashboard)
			r.Post("/parsed", h.CreateParsed)
			r.Get("/{id}", h.GetTransaction)
			r.Patch("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})
	})

	return r
}

// Metrics returns request and rate limit counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics()
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
