// Package http exposes the workspace as a JSON API over chi.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"saldo/internal/app"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/monthly"
)

// Options configures the server.
type Options struct {
	// UserHeader carries the signed-in user id, set by the fronting
	// authentication proxy.
	UserHeader string
	// PublicRPS and PublicBurst limit anonymous share reads per client IP.
	PublicRPS   float64
	PublicBurst int
}

type Server struct {
	http.Server
	router   *chi.Mux
	ws       *app.Workspace
	validate *requestValidator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	opts     Options

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ws *app.Workspace, opts Options, logger *log.Logger) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		router:   chi.NewRouter(),
		ws:       ws,
		validate: newRequestValidator(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RPS:   opts.PublicRPS,
			Burst: opts.PublicBurst,
		}),
		detector: security.NewDetector(),
		logger:   logger,
		opts:     opts,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(log.Middleware(s.logger))
	s.router.Use(log.AccessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.detector.Middleware(s.logger.Slog()))
	s.router.Use(security.Headers(security.DefaultHeadersConfig()))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", handleHealth)
	s.router.Get("/readyz", handleReady)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)

		r.Route("/public/shares", func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit))
			r.Get("/{id}", s.handlePublicShare)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Use(security.NoStore)

			r.Route("/months/{year}/{month}", func(r chi.Router) {
				r.Get("/", s.handleView)
				r.Put("/", s.handleSaveMain)
				r.Post("/load", s.handleLoad)
				r.Post("/sync", s.handleSync)
				r.Put("/active-tab", s.handleSelectTab)

				r.Post("/tabs", s.handleAddTab)
				r.Route("/tabs/{tab}", func(r chi.Router) {
					r.Patch("/", s.handleRenameTab)
					r.Delete("/", s.handleDeleteTab)
					r.Post("/items", s.handleAddItem)
					r.Patch("/items/{itemID}", s.handleUpdateItem)
					r.Post("/pay-all", s.handlePayAll)
					r.Post("/settle-all", s.handleSettleAll)
					r.Post("/shares", s.handleCreateShare)
				})
			})

			r.Get("/years/{year}", s.handleYearOverview)
			r.Get("/offline/months", s.handleOfflineMonths)

			r.Get("/shares", s.handleListShares)
			r.Delete("/shares/{id}", s.handleDeleteShare)

			r.Post("/logout", s.handleLogout)
		})

		// device settings; not tied to a user
		r.Get("/connectivity", s.handleConnectivity)
		r.Put("/connectivity", s.handleSetConnectivity)
		r.Get("/preferences/{name}", s.handleGetPreference)
		r.Put("/preferences/{name}", s.handleSetPreference)
	})
}

// requireUser resolves the signed-in user from the configured header.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(s.opts.UserHeader))
		if user == "" {
			errorResponse(w, http.StatusUnauthorized, "authentication required", nil, s.logger.Slog())
			return
		}
		ctx := monthly.WithUser(r.Context(), user)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ClientIP(r), "path", r.URL.Path)
	errorResponse(w, http.StatusTooManyRequests, "too many requests, try again later", nil, s.logger.Slog())
}

// Shutdown stops the rate limiter and drains the HTTP server. Only the
// first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
