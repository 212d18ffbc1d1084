package counters

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// MemoryStore implements Store using sharded in-memory maps.
// Each key is guarded by its shard lock, so unrelated sessions rarely contend
// and the sweep never holds more than one shard at a time.
type MemoryStore struct {
	cfg     Config
	shards  [shardCount]*shard
	now     func() time.Time
	logger  *slog.Logger
	onSweep SweepHook
	sweep   *sweeper
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, mostly for tests
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for sweep diagnostics
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *MemoryStore) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSweepHook registers a callback invoked after each background sweep
func WithSweepHook(fn SweepHook) MemoryOption {
	return func(m *MemoryStore) {
		m.onSweep = fn
	}
}

// NewMemoryStore creates a new in-memory entry store and starts the sweep
// loop unless cfg.CleanInterval is negative.
func NewMemoryStore(cfg Config, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		cfg:    cfg.WithDefaults(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	for _, opt := range opts {
		opt(m)
	}

	m.sweep = startSweeper(m.cfg.CleanInterval, m.sweepOnce)

	return m
}

// Create stores a fresh entry, overwriting any existing one
func (m *MemoryStore) Create(ctx context.Context, sessionID string) (Entry, error) {
	if sessionID == "" {
		return Entry{}, ErrInvalidSessionID
	}

	s := m.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Entry{LastModified: m.now().Unix()}
	s.entries[sessionID] = e
	return *e, nil
}

// Lookup retrieves an entry by session id
func (m *MemoryStore) Lookup(ctx context.Context, sessionID string) (Entry, error) {
	s := m.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return *e, nil
}

// Exists reports whether an entry is stored
func (m *MemoryStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	s := m.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[sessionID]
	return ok, nil
}

// Increment adds one to the selected counter under the shard lock
func (m *MemoryStore) Increment(ctx context.Context, sessionID string, kind Kind) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, ErrInvalidKind
	}

	s := m.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.bump(kind, m.now())
	return *e, nil
}

// RestoreIfAbsent inserts a fresh entry unless one already exists
func (m *MemoryStore) RestoreIfAbsent(ctx context.Context, sessionID string) (Entry, error) {
	if sessionID == "" {
		return Entry{}, ErrInvalidSessionID
	}

	s := m.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sessionID]; ok {
		return *e, nil
	}
	e := &Entry{LastModified: m.now().Unix()}
	s.entries[sessionID] = e
	return *e, nil
}

// DeleteExpired removes entries idle for longer than SessionMaxAge
func (m *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	deleted := 0
	for _, s := range m.shards {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		now := m.now()
		s.mu.Lock()
		for id, e := range s.entries {
			if e.Expired(now, m.cfg.SessionMaxAge) {
				delete(s.entries, id)
				deleted++
			}
		}
		s.mu.Unlock()
	}
	return deleted, nil
}

// Len returns the number of stored entries
func (m *MemoryStore) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Namespace returns the configured namespace
func (m *MemoryStore) Namespace() string {
	return m.cfg.Namespace
}

// Close stops the sweep goroutine
func (m *MemoryStore) Close() error {
	m.sweep.stop()
	return nil
}

func (m *MemoryStore) sweepOnce() {
	deleted, err := m.DeleteExpired(context.Background())
	if deleted > 0 {
		m.logger.Debug("expired entries swept",
			slog.String("namespace", m.cfg.Namespace),
			slog.Int("deleted", deleted),
		)
	}
	if m.onSweep != nil {
		m.onSweep(m.cfg.Namespace, deleted, err)
	}
}

func (m *MemoryStore) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return m.shards[h.Sum32()%shardCount]
}
