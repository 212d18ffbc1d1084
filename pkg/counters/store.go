package counters

import (
	"context"
	"sync"
	"time"
)

// Store defines the interface for per-session counter storage.
// Implementations must be safe for concurrent use and linearizable per session id.
type Store interface {
	// Create stores a fresh entry with zero counters, overwriting any existing one
	Create(ctx context.Context, sessionID string) (Entry, error)

	// Lookup returns the entry for the session id or ErrNotFound
	Lookup(ctx context.Context, sessionID string) (Entry, error)

	// Exists reports whether an entry is stored for the session id
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Increment atomically adds one to the selected counter and returns the updated entry
	Increment(ctx context.Context, sessionID string, kind Kind) (Entry, error)

	// RestoreIfAbsent creates an entry only if none exists and returns the stored one
	RestoreIfAbsent(ctx context.Context, sessionID string) (Entry, error)

	// DeleteExpired runs one sweep pass and returns the number of evicted entries
	DeleteExpired(ctx context.Context) (int, error)

	// Close stops the background sweep
	Close() error
}

// SweepHook is called after every background sweep pass
type SweepHook func(namespace string, deleted int, err error)

// sweeper runs fn on every tick until stopped.
// Shared by the store implementations.
type sweeper struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func startSweeper(interval time.Duration, fn func()) *sweeper {
	if interval <= 0 {
		return nil
	}
	s := &sweeper{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-s.ticker.C:
				fn()
			case <-s.done:
				return
			}
		}
	}()
	return s
}

func (s *sweeper) stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}
