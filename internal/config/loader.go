package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix  = "FUTBOL_"
	EnvFile    = "FUTBOL_CONFIG"
	EnvDotenv  = "FUTBOL_DOTENV"
	dotenvPath = ".env"
)

// Load builds a Config by layering, lowest precedence first:
//  1. defaults (New)
//  2. YAML file named by FUTBOL_CONFIG
//  3. environment, FUTBOL_ prefix, "__" between nested keys
//     (FUTBOL_STORE__DRIVER sets store.driver)
//
// A .env file (or the file named by FUTBOL_DOTENV) is read into the
// environment first; variables already set win.
func Load(_ context.Context) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(EnvDotenv)
	explicit := path != ""
	if !explicit {
		path = dotenvPath
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Language == "":
		return fmt.Errorf("%w: language must not be empty", ErrInvalidConfig)
	case c.Evaluation.Threshold <= 0 || c.Evaluation.Threshold > 1:
		return fmt.Errorf("%w: evaluation.threshold must be in (0,1], got %v", ErrInvalidConfig, c.Evaluation.Threshold)
	case c.Evaluation.TargetsPerEvaluator < 1:
		return fmt.Errorf("%w: evaluation.targets_per_evaluator must be positive", ErrInvalidConfig)
	case c.Evaluation.Deadline <= 0:
		return fmt.Errorf("%w: evaluation.deadline must be positive", ErrInvalidConfig)
	case c.Evaluation.SweepInterval < 0:
		return fmt.Errorf("%w: evaluation.sweep_interval must not be negative", ErrInvalidConfig)
	case c.HTTP.MaxRankingLimit < 1:
		return fmt.Errorf("%w: http.max_ranking_limit must be positive", ErrInvalidConfig)
	case c.Offline.QueueSize < 1 || c.Offline.Workers < 1:
		return fmt.Errorf("%w: offline queue_size and workers must be positive", ErrInvalidConfig)
	case c.Metrics.RefreshInterval < 0:
		return fmt.Errorf("%w: metrics.refresh_interval must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverDynamoDB:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for %s", ErrInvalidConfig, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	return nil
}
