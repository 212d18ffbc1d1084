package main

import (
	"time"

	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/httpserver"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

type appConfig struct {
	Tracker tracker.Config
	HTTP    httpserver.Config
	Redis   counters.RedisConfig

	// Store selects the entry store: memory or redis
	Store string `env:"TRACKER_STORE" envDefault:"memory"`

	CookieSecrets []string      `env:"TRACKER_COOKIE_SECRETS,required" envSeparator:","`
	CookieSecure  bool          `env:"TRACKER_COOKIE_SECURE" envDefault:"false"`
	CookieMaxAge  time.Duration `env:"TRACKER_COOKIE_MAX_AGE" envDefault:"720h"`
}
