// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Layer file and environment overrides in Load.
// - External errors must be wrapped via this package's error kinds.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// StoreKind selects session persistence: "memory" or "file".
	StoreKind string `koanf:"store_kind"`

	// StorePath is the session directory for the file store.
	StorePath string `koanf:"store_path"`

	// SaveQueueSize bounds the write-behind snapshot queue.
	SaveQueueSize int `koanf:"save_queue_size"`

	// SaveWorkers sets the number of background save workers.
	SaveWorkers int `koanf:"save_workers"`

	// AgentConcurrency caps in-flight collaborator calls across sessions.
	AgentConcurrency int `koanf:"agent_concurrency"`

	// AgentTimeoutMS bounds one collaborator call.
	AgentTimeoutMS int `koanf:"agent_timeout_ms"`

	// AgentLatencyMinMS and AgentLatencyMaxMS simulate collaborator latency
	// bounds for the scripted agents.
	AgentLatencyMinMS int `koanf:"agent_latency_min_ms"`
	AgentLatencyMaxMS int `koanf:"agent_latency_max_ms"`

	// SearchWidth caps concurrent resource lookups per summary.
	SearchWidth int `koanf:"search_width"`

	// SearchTimeoutMS bounds one resource lookup.
	SearchTimeoutMS int `koanf:"search_timeout_ms"`

	// DedupeSize bounds the request idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// TargetQuestions is the default question count for sessions that do not
	// set one.
	TargetQuestions int `koanf:"target_questions"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8090",
		StoreKind:         "memory",
		StorePath:         "./sessions",
		SaveQueueSize:     1024,
		SaveWorkers:       runtime.NumCPU(),
		AgentConcurrency:  8,
		AgentTimeoutMS:    15_000,
		AgentLatencyMinMS: 0,
		AgentLatencyMaxMS: 0,
		SearchWidth:       4,
		SearchTimeoutMS:   5_000,
		DedupeSize:        10_000,
		TargetQuestions:   5,
	}
}
