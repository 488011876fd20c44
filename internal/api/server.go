// Package api exposes the library over a JSON HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"lms/internal/insight"
	"lms/internal/library"
)

const maxBodyBytes = 1 << 20

// Options configures optional server behavior.
type Options struct {
	// AllowedOrigins for CORS. Defaults to any origin.
	AllowedOrigins []string
	// Webhook, when set, receives Telegram updates on WebhookPath.
	Webhook http.Handler
}

// WebhookPath is where Telegram posts updates in webhook mode.
const WebhookPath = "/telegram-webhook"

// Server routes HTTP requests to the library.
type Server struct {
	lib     *library.Library
	insight insight.Generator
	logger  *zap.Logger
	router  *chi.Mux
}

// NewServer creates the HTTP API on top of lib. A nil generator serves the
// static fallback blurb.
func NewServer(lib *library.Library, gen insight.Generator, logger *zap.Logger, opts Options) *Server {
	if gen == nil {
		gen = insight.Static{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		lib:     lib,
		insight: gen,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware(opts)
	s.setupRoutes(opts)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Get("/health", s.handleHealthCheck)

	if opts.Webhook != nil {
		s.router.Method(http.MethodPost, WebhookPath, opts.Webhook)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleCreateBook)
			r.Get("/{id}", s.handleGetBook)
			r.Delete("/{id}", s.handleDeleteBook)
			r.Get("/{id}/blurb", s.handleBookBlurb)
		})

		r.Route("/members", func(r chi.Router) {
			r.Get("/", s.handleListMembers)
			r.Get("/{id}/loans", s.handleMemberLoans)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", s.handleListLoans)
			r.Post("/", s.handleBorrow)
			r.Post("/{id}/return", s.handleReturn)
		})

		r.Get("/stats", s.handleStats)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	success(w, map[string]string{"status": "healthy"}, s.logger)
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
