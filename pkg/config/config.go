// Package config loads environment-backed configuration structs. A .env
// file, when present, is read once per process before the first parse;
// its absence is not an error.
package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig wraps env parse failures (missing required
	// variables, type mismatches).
	ErrParsingConfig = errors.New("config: failed to parse environment")

	// ErrNilPointer is returned when Load is handed a nil target.
	ErrNilPointer = errors.New("config: nil pointer provided")

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg based on its `env` field
// tags.
//
//	type GatewayConfig struct {
//		APIKey string `env:"STRIPE_API_KEY,required"`
//	}
//
//	var cfg GatewayConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// Best effort; most environments configure through real env vars.
		_ = godotenv.Load()
	})

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load that panics on failure, for use during startup where
// a misconfigured process should not come up at all.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
