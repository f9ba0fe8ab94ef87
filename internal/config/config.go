// Package config provides configuration management for nowadays-coach.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWorkerPort is the default HTTP port of the coaching worker.
	DefaultWorkerPort = 37700

	// DefaultInferenceURL is the default base URL of the inference backend.
	DefaultInferenceURL = "http://localhost:8000"

	// DefaultMaxConns is the default SQLite connection pool size.
	DefaultMaxConns = 4
)

// Config holds the runtime configuration.
type Config struct {
	WorkerPort      int    `json:"COACH_WORKER_PORT"`
	MaxConns        int    `json:"COACH_MAX_CONNS"`
	InferenceURL    string `json:"COACH_INFERENCE_URL"`
	InferenceAPIKey string `json:"COACH_INFERENCE_API_KEY"`
	ChecklistPath   string `json:"COACH_CHECKLIST_PATH"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerPort:   DefaultWorkerPort,
		MaxConns:     DefaultMaxConns,
		InferenceURL: DefaultInferenceURL,
	}
}

// DataDir returns the data directory path.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nowadays-coach"
	}
	return filepath.Join(home, ".nowadays-coach")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "coach.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if missing.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json and applies environment overrides on top of the
// defaults. A missing or unreadable settings file falls back to defaults
// without error.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			log.Warn().Err(err).Msg("Invalid settings file, using defaults")
			cfg = Default()
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides settings with environment variables of the same names
// as the settings keys.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COACH_WORKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPort = port
		}
	}
	if v := os.Getenv("COACH_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = n
		}
	}
	if v := os.Getenv("COACH_INFERENCE_URL"); v != "" {
		cfg.InferenceURL = v
	}
	if v := os.Getenv("COACH_INFERENCE_API_KEY"); v != "" {
		cfg.InferenceAPIKey = v
	}
	if v := os.Getenv("COACH_CHECKLIST_PATH"); v != "" {
		cfg.ChecklistPath = v
	}
}
