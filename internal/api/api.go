// Package api provides HTTP handlers and the main API server logic for
// intakeloop.
//
// It exposes RESTful endpoints for the onboarding interview: reading the
// current session, submitting answers, abandoning, resetting, and progress.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/intakeloop/intakeloop/internal/interview"
	"github.com/intakeloop/intakeloop/internal/models"
	"github.com/intakeloop/intakeloop/internal/store"
)

// Default server configuration
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr             string
	TranscriptWindow int
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTranscriptWindow sets the transcript page size used when a request
// carries no explicit limit.
func WithTranscriptWindow(n int) Option {
	return func(o *Opts) { o.TranscriptWindow = n }
}

// Server wires HTTP handlers to the interview flow controller.
type Server struct {
	controller       *interview.Controller
	st               store.Store
	httpServer       *http.Server
	transcriptWindow int
}

// NewServer creates an API server around a flow controller.
func NewServer(controller *interview.Controller, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	window := cfg.TranscriptWindow
	if window <= 0 {
		window = models.DefaultTranscriptWindow
	}

	s := &Server{controller: controller, st: st, transcriptWindow: window}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/onboarding/session", s.sessionHandler)
	mux.HandleFunc("/onboarding/submit", s.submitHandler)
	mux.HandleFunc("/onboarding/abandon", s.abandonHandler)
	mux.HandleFunc("/onboarding/reset", s.resetHandler)
	mux.HandleFunc("/onboarding/progress", s.progressHandler)
	mux.HandleFunc("/onboarding/transcript", s.transcriptHandler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the server's mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
