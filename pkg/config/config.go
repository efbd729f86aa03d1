// Package config loads session settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreSidecar = "sidecar"
	StoreBadger  = "badger"
	StoreMemory  = "memory"
)

var validate = validator.New()

// Config holds the configuration of an edit session
type Config struct {
	// ReplicateAPIToken enables AI masks and patches when set
	ReplicateAPIToken string `yaml:"-"`

	// RenderEngineURL is the base URL of the render daemon
	RenderEngineURL string `yaml:"render_engine_url" validate:"omitempty,url"`

	// Store selects where edit metadata is persisted
	Store     string `yaml:"store" validate:"oneof=sidecar badger memory"`
	StorePath string `yaml:"store_path" validate:"required_if=Store badger"`

	// HistoryLimit caps the undo stack; 0 keeps every entry
	HistoryLimit int `yaml:"history_limit" validate:"gte=0"`

	DebugMode bool          `yaml:"debug"`
	Timeouts  TimeoutConfig `yaml:"timeouts"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Store:        StoreSidecar,
		HistoryLimit: 100,
		Timeouts:     DefaultTimeouts(),
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	cfg.ReplicateAPIToken = os.Getenv("REPLICATE_API_TOKEN")
	cfg.RenderEngineURL = os.Getenv("PHOTO_SESSION_RENDER_URL")

	if store := os.Getenv("PHOTO_SESSION_STORE"); store != "" {
		cfg.Store = store
	}
	cfg.StorePath = os.Getenv("PHOTO_SESSION_STORE_PATH")

	if limit := os.Getenv("PHOTO_SESSION_HISTORY_LIMIT"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid PHOTO_SESSION_HISTORY_LIMIT: %w", err)
		}
		cfg.HistoryLimit = val
	}

	if debug := os.Getenv("DEBUG_MODE"); debug != "" {
		val, err := strconv.ParseBool(debug)
		if err != nil {
			return nil, fmt.Errorf("invalid DEBUG_MODE: %w", err)
		}
		cfg.DebugMode = val
	}

	timeouts, err := LoadTimeouts()
	if err != nil {
		return nil, err
	}
	cfg.Timeouts = timeouts

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AIEnabled reports whether AI operations can run.
func (c *Config) AIEnabled() bool {
	return c.ReplicateAPIToken != ""
}
