// Package web provides the HTTP server and handlers for the JSON to Power BI UI.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/jsonbi/internal/config"
	"github.com/JonMunkholm/jsonbi/internal/core"
	mw "github.com/JonMunkholm/jsonbi/internal/web/middleware"
)

// Server is the HTTP server for the upload application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	// Background jobs started by middleware stop when this is cancelled.
	ctx  context.Context
	stop context.CancelFunc
}

// NewServer creates a new Server instance. Call Shutdown or Close to stop
// its background jobs.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		ctx:     ctx,
		stop:    stop,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.RateLimiter(s.ctx, mw.RateLimitConfig{
			RequestsPerMinute: s.cfg.Rate.RequestsPerMinute,
		}))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	publishLimit := s.publishRateLimit()

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Post("/convert", s.handleConvert)
	s.router.Get("/preview/{sessionID}", s.handlePreviewPage)
	s.router.With(publishLimit).Post("/publish/{sessionID}", s.handlePublish)
	s.router.Get("/history", s.handleHistoryPage)
	s.router.Get("/healthz", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		if origins := s.cfg.Security.AllowedOrigins; len(origins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: origins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
				ExposedHeaders: []string{"Retry-After", middleware.RequestIDHeader},
				MaxAge:         300,
			}))
		}
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		r.Post("/convert", s.handleAPIConvert)
		r.Get("/preview/{sessionID}", s.handleAPIPreview)
		r.With(publishLimit).Post("/publish/{sessionID}", s.handleAPIPublish)
		r.Get("/history", s.handleAPIHistory)
		r.Get("/status", s.handleAPIStatus)
	})
}

// publishRateLimit returns the stricter per-client limit for publish routes.
func (s *Server) publishRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw.RateLimiter(s.ctx, mw.RateLimitConfig{RequestsPerMinute: s.cfg.Rate.PublishLimit})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Close stops background jobs without touching the listener. It is safe to
// call more than once.
func (s *Server) Close() {
	s.stop()
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// contentSecurityPolicy allows only same-origin resources and the inline
// stylesheet the pages embed.
const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it with status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
