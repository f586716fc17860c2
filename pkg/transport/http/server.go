package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sensei-dev/sensei/pkg/transport"
)

// Server owns the listening http.Server. Every request passes panic
// recovery, request ID assignment and access logging before the
// caller-supplied middleware.
type Server struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	drain        time.Duration
	logger       *slog.Logger

	srv *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address. Default ":8000".
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithTimeouts sets the read and write timeouts. Workflow generation
// waits on a provider, so the write timeout must exceed the provider chat
// timeout.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithShutdownTimeout bounds how long in-flight requests may finish after
// the context passed to Run is cancelled.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.drain = d }
}

// WithLogger sets the access and lifecycle logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer wraps handler in the standard middleware followed by extra.
func NewServer(handler http.Handler, extra []transport.Middleware, opts ...ServerOption) *Server {
	s := &Server{
		addr:         ":8000",
		readTimeout:  30 * time.Second,
		writeTimeout: 120 * time.Second,
		drain:        15 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mw := make([]transport.Middleware, 0, 3+len(extra))
	mw = append(mw, transport.Recovery(), transport.RequestID(), transport.Logging(s.logger))
	mw = append(mw, extra...)

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           transport.Chain(mw...)(handler),
		ReadHeaderTimeout: s.readTimeout,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains in-flight requests for
// at most the shutdown timeout. A listener failure ends Serve early with
// that error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()

		s.logger.Info("draining", "timeout", s.drain)
		if err := s.srv.Shutdown(drainCtx); err != nil {
			s.logger.Error("drain incomplete", "error", err)
			return err
		}
		s.logger.Info("stopped")
		return nil
	})

	return g.Wait()
}
