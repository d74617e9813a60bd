// Package web serves the bridge's operational HTTP endpoints.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/velden/playerok-bridge/internal/logger"
	"github.com/velden/playerok-bridge/internal/runner"
)

// StatsSource exposes the poller's counters. Satisfied by *runner.Runner.
type StatsSource interface {
	Stats() runner.Stats
}

// Status is the /status response body.
type Status struct {
	Account       string       `json:"account,omitempty"`
	NATSConnected *bool        `json:"nats_connected,omitempty"`
	Runner        runner.Stats `json:"runner"`
	UptimeSeconds int64        `json:"uptime_seconds"`
}

// Server is the status HTTP server.
type Server struct {
	http      *http.Server
	stats     StatsSource
	account   string
	natsCheck func() bool
	log       *logger.Logger
	startedAt time.Time
}

// Options configures the status server. NATSCheck and Account are optional.
type Options struct {
	Port      int
	Stats     StatsSource
	Account   string
	NATSCheck func() bool
	Logger    *logger.Logger
}

// NewServer builds the status server on its chi router.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	s := &Server{
		stats:     opts.Stats,
		account:   opts.Account,
		natsCheck: opts.NATSCheck,
		log:       opts.Logger,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.Info().Str("addr", s.http.Addr).Msg("status server started")

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown status server: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Account:       s.account,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.stats != nil {
		status.Runner = s.stats.Stats()
	}
	if s.natsCheck != nil {
		connected := s.natsCheck()
		status.NATSConnected = &connected
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.Debug().Err(err).Msg("encode status")
	}
}
