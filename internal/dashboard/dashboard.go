// Package dashboard serves the live web view over the stored readings.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/storage"
)

// Opener returns a fresh store handle. The caller closes it.
type Opener func(ctx context.Context) (storage.Store, error)

// Options configure the dashboard server.
type Options struct {
	Addr            string
	RefreshInterval time.Duration
	DefaultWindow   string
	MaxPoints       int
	// LiveSource names the live price source, empty when prices come from the store only.
	LiveSource string
}

// Server renders the dashboard pages and APIs.
type Server struct {
	opts   Options
	assets []string
	open   Opener
	live   fetcher.PriceFetcher
	hub    *hub
	logger zerolog.Logger
	now    func() time.Time
}

// New builds a dashboard server. live may be nil.
func New(opts Options, assets []string, open Opener, live fetcher.PriceFetcher, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8501"
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}
	if opts.DefaultWindow == "" {
		opts.DefaultWindow = "24h"
	}
	if live == nil {
		opts.LiveSource = ""
	}

	logger = logger.With().Str("component", "dashboard").Logger()
	return &Server{
		opts:   opts,
		assets: assets,
		open:   open,
		live:   live,
		hub:    newHub(logger),
		logger: logger,
		now:    time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/charts", s.handleCharts)
	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/history", s.handleHistory)
	})
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Str("live_source", s.opts.LiveSource).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go s.broadcast(ctx)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	s.logger.Info().Msg("dashboard stopped")
	return ctx.Err()
}

// broadcast pushes the latest prices to websocket clients every refresh interval.
func (s *Server) broadcast(ctx context.Context) {
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.size() == 0 {
				continue
			}
			payload, err := s.latestPayload(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("latest prices unavailable for broadcast")
				continue
			}
			s.hub.publish(payload)
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

// parseWindow maps a dashboard window name to its duration.
func parseWindow(name string) (time.Duration, error) {
	switch name {
	case "1h":
		return time.Hour, nil
	case "24h":
		return 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown window %q (want one of 1h, 24h, 7d)", name)
}

func windowTitle(name string) string {
	switch name {
	case "1h":
		return "Last 1 Hour"
	case "7d":
		return "Last 7 Days"
	default:
		return "Last 24 Hours"
	}
}

func (s *Server) windowParam(r *http.Request) (string, time.Duration, error) {
	name := r.URL.Query().Get("window")
	if name == "" {
		name = s.opts.DefaultWindow
	}
	d, err := parseWindow(name)
	return name, d, err
}
