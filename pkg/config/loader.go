package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

type options struct {
	prefix   string
	files    []string
	environ  map[string]string
	required bool
}

// Option customizes a single Load call
type Option func(*options)

// WithPrefix prepends prefix to every env key of the struct
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithDotEnv loads the given files instead of the default .env.
// Unlike the default file, missing explicit files are an error.
func WithDotEnv(files ...string) Option {
	return func(o *options) { o.files = append(o.files, files...) }
}

// WithEnvironment parses from the given map instead of the process
// environment. Mostly for tests.
func WithEnvironment(environ map[string]string) Option {
	return func(o *options) { o.environ = environ }
}

// WithRequiredIfNoDefault treats every field without envDefault as required
func WithRequiredIfNoDefault() Option {
	return func(o *options) { o.required = true }
}

// Load fills v from environment variables according to its `env` and
// `envDefault` struct tags.
//
// The default .env file in the working directory is read once per process if
// it exists; values already present in the environment win.
//
//	type Config struct {
//		Endpoint string `env:"TRACKER_ENDPOINT,required"`
//		MaxAge   time.Duration `env:"TRACKER_SESSION_MAX_AGE" envDefault:"1h"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.files) > 0 {
		if err := godotenv.Load(o.files...); err != nil {
			return errors.Join(ErrDotEnv, err)
		}
	} else if o.environ == nil {
		defaultEnvLoaded.Do(func() {
			// The .env file is optional
			_ = godotenv.Load()
		})
	}

	envOpts := env.Options{
		Prefix:          o.prefix,
		RequiredIfNoDef: o.required,
		Environment:     o.environ,
		FuncMap:         map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseDuration,
		},
	}
	if err := env.ParseWithOptions(v, envOpts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Intended for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// parseDuration accepts Go duration strings ("90m") and plain integer
// seconds ("5400").
func parseDuration(v string) (any, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: use seconds or a Go duration string", v)
	}
	return d, nil
}
