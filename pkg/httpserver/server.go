package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Server runs an http.Server until the context is cancelled or the process
// receives SIGINT or SIGTERM, then drains registered hooks.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	startHooks []func(addr string)
	drainHooks []DrainHook

	mu   sync.Mutex
	srv  *http.Server
	once sync.Once
	err  error
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	s := &Server{
		cfg:    defaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts serving handler and blocks until shutdown.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, ErrAlreadyRunning)
	}
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.srv = srv
	s.mu.Unlock()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}

	addr := ln.Addr().String()
	s.logger.InfoContext(ctx, "http server started", slog.String("addr", addr))
	for _, h := range s.startHooks {
		h(addr)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-ctx.Done():
	case sig := <-stop:
		s.logger.InfoContext(ctx, "shutdown signal received", slog.String("signal", sig.String()))
	case runErr = <-errCh:
	}

	shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
	if runErr == nil {
		runErr = <-errCh
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	return shutdownErr
}

// Shutdown stops the server gracefully and runs drain hooks.
// It is safe for repeated calls; later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		for _, h := range s.drainHooks {
			if err := h(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			s.err = errors.Join(append([]error{ErrShutdown}, errs...)...)
			s.logger.ErrorContext(ctx, "http server shutdown failed", slog.Any("error", s.err))
			return
		}
		s.logger.InfoContext(ctx, "http server stopped")
	})
	return s.err
}
