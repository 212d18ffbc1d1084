package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
)

// CompletionHook is invoked with the terminal result of every delivery.
// Hooks run on the tracker's result worker, never on the tracking caller.
type CompletionHook func(ctx context.Context, res delivery.Result)

// Deliverer sends a tracking request and reports its terminal result.
// *delivery.Client satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, app delivery.AppInfo, endpoint string, req delivery.Request) delivery.Result
}

// Option is a functional option for configuring the Tracker
type Option func(*Tracker)

// WithConfig replaces the whole configuration. App info and endpoint passed
// to New take precedence when non-empty.
func WithConfig(cfg Config) Option {
	return func(t *Tracker) {
		t.cfg = cfg
	}
}

// WithStore sets a custom entry store. The tracker does not close stores it
// did not create.
func WithStore(store counters.Store) Option {
	return func(t *Tracker) {
		t.store = store
	}
}

// WithStoreConfig sets the configuration of the default in-memory store
func WithStoreConfig(cfg counters.Config) Option {
	return func(t *Tracker) {
		t.cfg.Store = cfg
	}
}

// WithDeliveryClient sets the component that ships records
func WithDeliveryClient(d Deliverer) Option {
	return func(t *Tracker) {
		t.client = d
	}
}

// WithCompletionHook adds a hook invoked with every delivery result.
// Multiple hooks run in registration order.
func WithCompletionHook(hook CompletionHook) Option {
	return func(t *Tracker) {
		if hook != nil {
			t.hooks = append(t.hooks, hook)
		}
	}
}

// WithLogger sets the logger, default is slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithSessionKey sets the name of the session attributes key
func WithSessionKey(key string) Option {
	return func(t *Tracker) {
		t.cfg.SessionKey = key
	}
}

// WithCookieName sets the session cookie name
func WithCookieName(name string) Option {
	return func(t *Tracker) {
		t.cfg.CookieName = name
	}
}

// WithRetry configures the default delivery client: attempts in total and
// a constant interval between them.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(t *Tracker) {
		t.cfg.MaxAttempts = attempts
		t.cfg.RetryInterval = interval
	}
}

// WithResultBuffer sets the capacity of the completion channel
func WithResultBuffer(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.resultBuffer = n
		}
	}
}
