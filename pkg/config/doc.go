// Package config loads typed configuration from environment variables.
//
// Structs declare their keys with `env` tags and defaults with `envDefault`
// (see github.com/caarlos0/env). A .env file in the working directory is
// picked up automatically through github.com/joho/godotenv.
//
//	var cfg tracker.Config
//	config.MustLoad(&cfg)
//
// Tests can bypass the process environment entirely:
//
//	err := config.Load(&cfg, config.WithEnvironment(map[string]string{
//	    "TRACKER_ENDPOINT": "http://localhost:4000/api",
//	}))
package config
