package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessiontrack/pkg/config"
	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/httpserver"
	"github.com/dmitrymomot/sessiontrack/pkg/httpsession"
	"github.com/dmitrymomot/sessiontrack/pkg/logger"
	"github.com/dmitrymomot/sessiontrack/pkg/metrics"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Tracker.App.Environment, cfg.Tracker.App.Name))
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("trackerd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	m := metrics.New()

	st, err := openStore(ctx, cfg, log, m)
	if err != nil {
		return err
	}

	client := delivery.NewClient(
		delivery.WithMaxAttempts(cfg.Tracker.MaxAttempts),
		delivery.WithBackoff(delivery.FixedBackoff{Interval: cfg.Tracker.RetryInterval}),
		delivery.WithOnAttempt(m.ObserveAttempt),
	)

	t, err := tracker.NewFromConfig(cfg.Tracker,
		tracker.WithStore(st.store),
		tracker.WithDeliveryClient(client),
		tracker.WithCompletionHook(m.ObserveResult),
		tracker.WithLogger(log),
	)
	if err != nil {
		_ = st.close(ctx)
		return err
	}

	sessions, err := httpsession.NewManager(cfg.Tracker, cfg.CookieSecrets,
		httpsession.WithSecure(cfg.CookieSecure),
		httpsession.WithMaxAge(cfg.CookieMaxAge),
		httpsession.WithLogger(log),
	)
	if err != nil {
		_ = t.Close(ctx)
		_ = st.close(ctx)
		return fmt.Errorf("session cookies: %w", err)
	}

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithDrainHook(t.Close),
		httpserver.WithDrainHook(st.close),
	)

	return srv.Run(ctx, newRouter(t, sessions, m, log, st.checks...))
}

type openedStore struct {
	store  counters.Store
	checks []func(context.Context) error
	close  func(context.Context) error
}

func openStore(ctx context.Context, cfg appConfig, log *slog.Logger, m *metrics.Collector) (*openedStore, error) {
	switch cfg.Store {
	case storeMemory, "":
		store := counters.NewMemoryStore(cfg.Tracker.Store,
			counters.WithLogger(log),
			counters.WithSweepHook(m.ObserveSweep),
		)
		if err := m.RegisterStoreSize(store.Len); err != nil {
			return nil, err
		}
		return &openedStore{
			store: store,
			close: func(context.Context) error { return store.Close() },
		}, nil

	case storeRedis:
		db, err := counters.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store := counters.NewRedisStore(db, cfg.Tracker.Store,
			counters.WithRedisLogger(log),
			counters.WithRedisSweepHook(m.ObserveSweep),
			counters.WithScanBatchSize(cfg.Redis.ScanBatchSize),
		)
		return &openedStore{
			store:  store,
			checks: []func(context.Context) error{pingRedis(db)},
			close: func(context.Context) error {
				_ = store.Close()
				return db.Close()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q: must be %q or %q", cfg.Store, storeMemory, storeRedis)
}

func pingRedis(db redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		return db.Ping(ctx).Err()
	}
}
