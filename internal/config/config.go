// Package config loads NormCode's runtime configuration from YAML, with
// environment variable overrides, following the nested sub-config layout
// the teacher repo uses for its own config.json/yaml.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all NormCode configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Limits       LimitsConfig       `yaml:"limits"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Checkpoint   CheckpointConfig   `yaml:"checkpoint"`
	Router       RouterConfig       `yaml:"router"`
}

// LoggingConfig controls the logging subsystem.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	JSONFormat bool            `yaml:"json_format"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// LimitsConfig bounds resource usage of a run.
type LimitsConfig struct {
	MaxCycles      int           `yaml:"max_cycles"`
	CycleTimeout   time.Duration `yaml:"cycle_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// OrchestratorConfig tunes the cycle loop.
type OrchestratorConfig struct {
	CheckpointEveryCycle bool `yaml:"checkpoint_every_cycle"`
	EnableMetrics        bool `yaml:"enable_metrics"`
}

// CheckpointConfig selects and tunes the durable snapshot backend.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // "memory" | "sqlite"
	Path    string `yaml:"path"`
}

// RouterConfig tunes the PerceptionRouter.
type RouterConfig struct {
	MaxConcurrentFacultyCalls int           `yaml:"max_concurrent_faculty_calls"`
	FacultyTimeout            time.Duration `yaml:"faculty_timeout"`
}

// DefaultConfig returns a usable configuration with conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			DebugMode:  false,
			JSONFormat: false,
			Level:      "info",
		},
		Limits: LimitsConfig{
			MaxCycles:      10000,
			CycleTimeout:   30 * time.Second,
			MaxConcurrency: 4,
		},
		Orchestrator: OrchestratorConfig{
			CheckpointEveryCycle: true,
			EnableMetrics:        true,
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Router: RouterConfig{
			MaxConcurrentFacultyCalls: 4,
			FacultyTimeout:            60 * time.Second,
		},
	}
}

// Load reads a YAML config file and applies environment overrides on top
// of DefaultConfig. A missing file is not an error; defaults are used.
// A .env file in the working directory, if present, is loaded into the
// process environment before overrides are read, so NORMCODE_* variables
// can live alongside the workspace rather than the caller's shell.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets NORMCODE_* environment variables win over the file,
// mirroring the teacher's env-override-beats-file precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NORMCODE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("NORMCODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NORMCODE_CHECKPOINT_BACKEND"); v != "" {
		cfg.Checkpoint.Backend = v
	}
	if v := os.Getenv("NORMCODE_CHECKPOINT_PATH"); v != "" {
		cfg.Checkpoint.Path = v
	}
	if v := os.Getenv("NORMCODE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxConcurrency = n
		}
	}
}
