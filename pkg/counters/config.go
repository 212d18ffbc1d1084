package counters

import "time"

// SweepDisabled turns off the background sweep when used as CleanInterval.
// Any negative interval has the same effect.
const SweepDisabled time.Duration = -1

// Config holds entry store configuration.
// Durations accept Go duration strings ("90m") or plain seconds ("5400")
// when loaded through pkg/config.
type Config struct {
	// Namespace isolates this store's keys from other stores in the same process or redis db
	Namespace string `env:"TRACKER_NAMESPACE" envDefault:"tracker_sessions"`

	// SessionMaxAge is the inactivity period after which an entry is evicted
	SessionMaxAge time.Duration `env:"TRACKER_SESSION_MAX_AGE" envDefault:"3600s"`

	// CleanInterval between sweep passes. Zero means the default, negative disables the sweep.
	CleanInterval time.Duration `env:"TRACKER_CLEAN_INTERVAL" envDefault:"5400s"`
}

// DefaultConfig returns default store configuration
func DefaultConfig() Config {
	return Config{
		Namespace:     "tracker_sessions",
		SessionMaxAge: time.Hour,
		CleanInterval: 90 * time.Minute,
	}
}

// WithDefaults returns c with every zero field taken from DefaultConfig.
// A negative CleanInterval is kept so the sweep stays disabled.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Namespace == "" {
		c.Namespace = def.Namespace
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = def.SessionMaxAge
	}
	if c.CleanInterval == 0 {
		c.CleanInterval = def.CleanInterval
	}
	return c
}

// SweepEnabled reports whether the background sweep runs
func (c Config) SweepEnabled() bool {
	return c.CleanInterval > 0
}
