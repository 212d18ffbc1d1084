package tracker

import (
	"time"

	"github.com/dmitrymomot/sessiontrack/pkg/counters"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
)

// Config holds the tracker configuration. It is fixed at construction and
// returned by value from Tracker.Config.
type Config struct {
	App delivery.AppInfo

	// Endpoint is the base URL of the analytics API
	Endpoint string `env:"TRACKER_ENDPOINT"`

	// SessionKey names the tracker attributes inside the caller's session storage
	SessionKey string `env:"TRACKER_SESSION_KEY" envDefault:"tracker_session"`

	// CookieName is the name of the cookie carrying the session attributes
	CookieName string `env:"TRACKER_COOKIE_NAME" envDefault:"_tracker_sid"`

	Store counters.Config

	// RetryInterval is the constant delay between delivery attempts
	RetryInterval time.Duration `env:"TRACKER_RETRY_INTERVAL" envDefault:"1s"`

	// MaxAttempts is the total number of delivery attempts per record
	MaxAttempts int `env:"TRACKER_MAX_ATTEMPTS" envDefault:"5"`
}

// DefaultConfig returns the default configuration without app info and endpoint
func DefaultConfig() Config {
	return Config{
		SessionKey:    "tracker_session",
		CookieName:    "_tracker_sid",
		Store:         counters.DefaultConfig(),
		RetryInterval: time.Second,
		MaxAttempts:   delivery.DefaultMaxAttempts,
	}
}

// withDefaults fills zero valued fields from DefaultConfig, store fields included
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SessionKey == "" {
		c.SessionKey = def.SessionKey
	}
	if c.CookieName == "" {
		c.CookieName = def.CookieName
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = def.MaxAttempts
	}
	c.Store = c.Store.WithDefaults()
	return c
}
