package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/sessiontrack/pkg/config"
	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

type rootFlags struct {
	configFile string
	endpoint   string
	appName    string
	appVersion string
	attempts   int
	interval   time.Duration
	verbose    bool
}

// fileConfig is the layout of the --config YAML file
type fileConfig struct {
	Endpoint string           `yaml:"endpoint"`
	App      delivery.AppInfo `yaml:"app"`
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Send session tracking records to an analytics endpoint",
		Long:          "Send a single visit or event record and print the delivery result. Settings come from TRACKER_* variables, then the --config file, then flags.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "YAML file with endpoint and app info")
	pf.StringVarP(&f.endpoint, "endpoint", "e", "", "Analytics API base URL (overrides config)")
	pf.StringVar(&f.appName, "app-name", "", "Application name (overrides config)")
	pf.StringVar(&f.appVersion, "app-version", "", "Application version (overrides config)")
	pf.IntVar(&f.attempts, "attempts", delivery.DefaultMaxAttempts, "Delivery attempts before giving up")
	pf.DurationVar(&f.interval, "interval", time.Second, "Delay between delivery attempts")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Log every delivery attempt to stderr")

	root.AddCommand(newVisitCmd(f), newEventCmd(f))
	return root
}

// trackerConfig merges environment, config file and flags, in that order
func (f *rootFlags) trackerConfig() (tracker.Config, error) {
	var cfg tracker.Config
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}

	if f.configFile != "" {
		data, err := os.ReadFile(f.configFile)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		if fc.Endpoint != "" {
			cfg.Endpoint = fc.Endpoint
		}
		mergeApp(&cfg.App, fc.App)
	}

	if f.endpoint != "" {
		cfg.Endpoint = f.endpoint
	}
	mergeApp(&cfg.App, delivery.AppInfo{Name: f.appName, Version: f.appVersion})

	cfg.MaxAttempts = f.attempts
	cfg.RetryInterval = f.interval
	return cfg, nil
}

func mergeApp(dst *delivery.AppInfo, src delivery.AppInfo) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Version != "" {
		dst.Version = src.Version
	}
	if src.Hash != "" {
		dst.Hash = src.Hash
	}
	if src.Environment != "" {
		dst.Environment = src.Environment
	}
}
