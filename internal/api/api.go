// Package api provides the local dashboard HTTP API over the BioFlow App.
//
// The endpoints expose the application state and the operations the browser
// dashboard needs; every response uses the {status, message, result} envelope.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
)

// Default server settings.
const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultRequestsPerSec  = 20
	DefaultMaxUploadBytes  = 10 << 20
	DefaultShutdownTimeout = 5 * time.Second
)

// ToastSource lists the toasts currently shown.
type ToastSource interface {
	Recent() []models.Toast
}

// Opts holds configuration for the server.
type Opts struct {
	Addr           string
	RequestsPerSec int
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRateLimit sets the per-IP request limit per second. Zero disables it.
func WithRateLimit(perSecond int) Option {
	return func(o *Opts) { o.RequestsPerSec = perSecond }
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// WithMaxUploadBytes caps the lab report upload size.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Opts) { o.MaxUploadBytes = n }
}

// Server serves the dashboard API.
type Server struct {
	app      *flow.App
	toasts   ToastSource
	opts     Opts
	validate *validator.Validate
	router   chi.Router
}

// NewServer creates a server for app. toasts may be nil.
func NewServer(app *flow.App, toasts ToastSource, opts ...Option) *Server {
	cfg := Opts{
		Addr:           DefaultAddr,
		RequestsPerSec: DefaultRequestsPerSec,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		app:      app,
		toasts:   toasts,
		opts:     cfg,
		validate: validator.New(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if s.opts.RequestsPerSec > 0 {
		r.Use(httprate.LimitByIP(s.opts.RequestsPerSec, time.Second))
	}

	r.Get("/state", s.stateHandler)
	r.Get("/calendar", s.calendarHandler)
	r.Route("/context", func(r chi.Router) {
		r.Post("/upload", s.uploadHandler)
		r.Post("/demo", s.demoHandler)
	})
	r.Get("/consultation", s.consultationHandler)
	r.Post("/consultation/answer", s.answerHandler)
	r.Post("/plan", s.planHandler)
	r.Get("/shopping", s.shoppingHandler)
	r.Post("/water", s.waterHandler)
	r.Post("/fasting/toggle", s.fastingHandler)
	r.Post("/journal", s.journalHandler)
	r.Post("/mood", s.moodHandler)
	r.Post("/tools/{id}", s.toolHandler)
	r.Post("/chat", s.chatHandler)
	r.Get("/export", s.exportHandler)
	r.Get("/toasts", s.toastsHandler)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: dashboard API listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard API failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	slog.Info("Server.Run: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard API: %w", err)
	}
	return nil
}
