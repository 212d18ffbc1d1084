package counters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldView     = "view"
	fieldEvent    = "event"
	fieldModified = "modified"
)

var (
	incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('HSET', KEYS[1], 'modified', ARGV[2])
return redis.call('HMGET', KEYS[1], 'view', 'event', 'modified')
`)

	restoreScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'view', 0, 'event', 0, 'modified', ARGV[1])
end
return redis.call('HMGET', KEYS[1], 'view', 'event', 'modified')
`)

	expireScript = redis.NewScript(`
local m = redis.call('HGET', KEYS[1], 'modified')
if m and tonumber(m) + tonumber(ARGV[1]) < tonumber(ARGV[2]) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)
)

// RedisConfig holds redis connection settings for RedisStore
type RedisConfig struct {
	ConnectionURL  string        `env:"TRACKER_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"TRACKER_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"TRACKER_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"TRACKER_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	ScanBatchSize  int64         `env:"TRACKER_REDIS_SCAN_BATCH" envDefault:"1000"`
}

// ConnectRedis parses the connection URL and pings the server, retrying
// RetryAttempts times with RetryInterval between attempts.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	attempts := max(cfg.RetryAttempts, 1)
	for range attempts {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}

// RedisStore implements Store on top of redis hashes.
// Every session is a hash at "<namespace>:<session id>"; increments and
// restores run as lua scripts so they are atomic per key.
type RedisStore struct {
	db        redis.UniversalClient
	cfg       Config
	scanBatch int64
	now       func() time.Time
	logger    *slog.Logger
	onSweep   SweepHook
	sweep     *sweeper
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithRedisClock overrides the time source
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRedisLogger sets the logger used for sweep diagnostics
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRedisSweepHook registers a callback invoked after each background sweep
func WithRedisSweepHook(fn SweepHook) RedisOption {
	return func(s *RedisStore) {
		s.onSweep = fn
	}
}

// WithScanBatchSize sets the SCAN count hint used by the sweep
func WithScanBatchSize(n int64) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanBatch = n
		}
	}
}

// NewRedisStore creates a redis backed store and starts the sweep loop when
// cfg.CleanInterval is negative.
func NewRedisStore(db redis.UniversalClient, cfg Config, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		db:        db,
		cfg:       cfg.WithDefaults(),
		scanBatch: 1000,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sweep = startSweeper(s.cfg.CleanInterval, s.sweepOnce)

	return s
}

// Create stores a fresh entry, overwriting any existing one
func (s *RedisStore) Create(ctx context.Context, sessionID string) (Entry, error) {
	if sessionID == "" {
		return Entry{}, ErrInvalidSessionID
	}

	key := s.key(sessionID)
	e := Entry{LastModified: s.now().Unix()}
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldView, 0, fieldEvent, 0, fieldModified, e.LastModified)
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// Lookup retrieves an entry by session id
func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (Entry, error) {
	vals, err := s.db.HMGet(ctx, s.key(sessionID), fieldView, fieldEvent, fieldModified).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("lookup entry: %w", err)
	}
	return parseEntry(vals)
}

// Exists reports whether an entry is stored
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.db.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	return n > 0, nil
}

// Increment adds one to the selected counter atomically
func (s *RedisStore) Increment(ctx context.Context, sessionID string, kind Kind) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, ErrInvalidKind
	}

	res, err := incrementScript.Run(ctx, s.db, []string{s.key(sessionID)}, string(kind), s.now().Unix()).Slice()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("increment entry: %w", err)
	}
	return parseEntry(res)
}

// RestoreIfAbsent inserts a fresh entry unless one already exists
func (s *RedisStore) RestoreIfAbsent(ctx context.Context, sessionID string) (Entry, error) {
	if sessionID == "" {
		return Entry{}, ErrInvalidSessionID
	}

	res, err := restoreScript.Run(ctx, s.db, []string{s.key(sessionID)}, s.now().Unix()).Slice()
	if err != nil {
		return Entry{}, fmt.Errorf("restore entry: %w", err)
	}
	return parseEntry(res)
}

// DeleteExpired scans the namespace and deletes idle entries one key at a time
func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	maxAge := int64(s.cfg.SessionMaxAge / time.Second)
	deleted := 0

	var cursor uint64
	for {
		keys, next, err := s.db.Scan(ctx, cursor, s.cfg.Namespace+":*", s.scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan entries: %w", err)
		}

		now := s.now().Unix()
		for _, key := range keys {
			n, err := expireScript.Run(ctx, s.db, []string{key}, maxAge, now).Int()
			if err != nil {
				return deleted, fmt.Errorf("expire entry: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Namespace returns the configured namespace
func (s *RedisStore) Namespace() string {
	return s.cfg.Namespace
}

// Close stops the sweep goroutine. The redis client is owned by the caller.
func (s *RedisStore) Close() error {
	s.sweep.stop()
	return nil
}

func (s *RedisStore) sweepOnce() {
	deleted, err := s.DeleteExpired(context.Background())
	if err != nil {
		s.logger.Error("sweep failed",
			slog.String("namespace", s.cfg.Namespace),
			slog.Any("error", err),
		)
	} else if deleted > 0 {
		s.logger.Debug("expired entries swept",
			slog.String("namespace", s.cfg.Namespace),
			slog.Int("deleted", deleted),
		)
	}
	if s.onSweep != nil {
		s.onSweep(s.cfg.Namespace, deleted, err)
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.cfg.Namespace + ":" + sessionID
}

// parseEntry converts an HMGET reply (view, event, modified) into an Entry.
// A reply of only nils means the hash does not exist.
func parseEntry(vals []any) (Entry, error) {
	if len(vals) != 3 || (vals[0] == nil && vals[1] == nil && vals[2] == nil) {
		return Entry{}, ErrNotFound
	}

	nums := make([]int64, 3)
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return Entry{}, fmt.Errorf("unexpected redis value type %T", v)
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("parse counter: %w", err)
		}
		nums[i] = n
	}

	return Entry{
		ViewSequence:  nums[0],
		EventSequence: nums[1],
		LastModified:  nums[2],
	}, nil
}
