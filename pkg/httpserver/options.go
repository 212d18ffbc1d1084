package httpserver

import (
	"context"
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*Server)

// DrainHook runs after the listener stops accepting requests.
// The context carries the remaining shutdown deadline.
type DrainHook func(ctx context.Context) error

// WithAddr sets the address the server listens on.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(s *Server) { s.cfg.Addr = addr }
}

// WithTimeouts sets read, write and idle timeouts. Zero leaves a value unset.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.cfg.ReadTimeout = read
		s.cfg.WriteTimeout = write
		s.cfg.IdleTimeout = idle
	}
}

// WithShutdownTimeout sets the time allowed for graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(s *Server) { s.cfg.ShutdownTimeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStartHook registers a callback that runs once the listener is bound.
func WithStartHook(h func(addr string)) Option {
	if h == nil {
		panic("WithStartHook: nil hook")
	}
	return func(s *Server) { s.startHooks = append(s.startHooks, h) }
}

// WithDrainHook registers a hook run after the server stops, in registration order.
func WithDrainHook(h DrainHook) Option {
	if h == nil {
		panic("WithDrainHook: nil hook")
	}
	return func(s *Server) { s.drainHooks = append(s.drainHooks, h) }
}
