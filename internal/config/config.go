package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backends for the progress snapshot.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultPassThreshold is the score at which an attempt counts as a
// lesson completion.
const DefaultPassThreshold = 60.0

// Config holds all configuration for the progress engine
type Config struct {
	Storage    StorageConfig  `yaml:"storage"`
	Progress   ProgressConfig `yaml:"progress"`
	Curriculum Curriculum     `yaml:"curriculum"`
	Debug      bool           `yaml:"debug"`
}

// StorageConfig holds snapshot persistence settings
type StorageConfig struct {
	// DataDir is where snapshots live; empty means ~/.pointerquest
	DataDir string `yaml:"data_dir"`
	// Backend selects the snapshot store: json or sqlite
	Backend string `yaml:"backend"`
	// AutosaveMinutes enables a periodic background flush; 0 disables
	AutosaveMinutes int `yaml:"autosave_minutes"`
}

// ProgressConfig holds progress policy settings
type ProgressConfig struct {
	// PassThreshold is the score that marks a lesson completed
	PassThreshold float64 `yaml:"pass_threshold"`
	// StreakGrace keeps a streak alive through a day with no
	// completion yet (counted from yesterday instead of resetting)
	StreakGrace bool `yaml:"streak_grace"`
	// TotalLessons overrides the curriculum-derived total; 0 derives it
	TotalLessons int `yaml:"total_lessons"`
}

// DefaultConfig returns sensible defaults for a local installation
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		Progress: ProgressConfig{
			PassThreshold: DefaultPassThreshold,
			StreakGrace:   true,
		},
		Curriculum: DefaultCurriculum(),
	}
}

// Load reads the local config file and applies environment overrides
func Load() (*Config, error) {
	cfg, err := LoadLocalConfig()
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Storage.DataDir = getEnv("POINTERQUEST_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.Backend = getEnv("POINTERQUEST_BACKEND", cfg.Storage.Backend)
	cfg.Storage.AutosaveMinutes = getEnvInt("POINTERQUEST_AUTOSAVE_MINUTES", cfg.Storage.AutosaveMinutes)
	cfg.Progress.PassThreshold = getEnvFloat("POINTERQUEST_PASS_THRESHOLD", cfg.Progress.PassThreshold)
	cfg.Progress.StreakGrace = getEnvBool("POINTERQUEST_STREAK_GRACE", cfg.Progress.StreakGrace)
	cfg.Progress.TotalLessons = getEnvInt("POINTERQUEST_TOTAL_LESSONS", cfg.Progress.TotalLessons)
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.AutosaveMinutes < 0 {
		return fmt.Errorf("autosave_minutes must not be negative")
	}
	if c.Progress.PassThreshold < 0 || c.Progress.PassThreshold > 100 {
		return fmt.Errorf("pass_threshold must be within [0,100], got %v", c.Progress.PassThreshold)
	}
	if c.Progress.TotalLessons < 0 {
		return fmt.Errorf("total_lessons must not be negative")
	}
	return c.Curriculum.Validate()
}

// TotalLessons returns the configured curriculum size
func (c *Config) TotalLessons() int {
	if c.Progress.TotalLessons > 0 {
		return c.Progress.TotalLessons
	}
	return c.Curriculum.TotalLessons()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
