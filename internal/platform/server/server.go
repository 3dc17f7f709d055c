package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const defaultDrainTimeout = 10 * time.Second

// Server wraps an http.Server with graceful shutdown. In-flight guard checks
// and proxied requests get drainTimeout to finish before the listener is
// torn down.
type Server struct {
	srv   *http.Server
	drain time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithDrainTimeout overrides how long shutdown waits for in-flight requests.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) { s.drain = d }
}

// New creates a Server that listens on addr and routes to handler.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		drain: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server and blocks until ctx is cancelled, then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drain)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
