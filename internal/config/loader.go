package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if GREENROOM_CONFIG is set
//  3. env (prefix GREENROOM_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("GREENROOM_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: GREENROOM_ADDR, GREENROOM_SAVE_WORKERS, ...
	// Map keys like GREENROOM_SAVE_WORKERS -> save_workers to match the
	// koanf tags on the struct.
	envProvider := env.Provider("GREENROOM_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "greenroom_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch cfg.StoreKind {
	case "memory", "file":
	default:
		return fmt.Errorf("%w: store_kind must be memory or file, got %q", ErrInvalidConfig, cfg.StoreKind)
	}
	if cfg.StoreKind == "file" && cfg.StorePath == "" {
		return fmt.Errorf("%w: store_path must not be empty for the file store", ErrInvalidConfig)
	}
	if cfg.SaveWorkers < 1 {
		return fmt.Errorf("%w: save_workers must be positive", ErrInvalidConfig)
	}
	if cfg.AgentConcurrency < 1 {
		return fmt.Errorf("%w: agent_concurrency must be positive", ErrInvalidConfig)
	}
	if cfg.AgentLatencyMaxMS < cfg.AgentLatencyMinMS {
		return fmt.Errorf("%w: agent_latency_max_ms must not be below agent_latency_min_ms", ErrInvalidConfig)
	}
	if cfg.TargetQuestions < 0 {
		return fmt.Errorf("%w: target_questions must not be negative", ErrInvalidConfig)
	}
	return nil
}
