package config

import (
	"fmt"
	"os"
	"time"
)

// TimeoutConfig holds all configurable debounce windows and timeouts
type TimeoutConfig struct {
	// HistoryWindow is the quiet period after which a live edit is
	// committed to undo history
	HistoryWindow time.Duration `yaml:"history_window" validate:"gt=0"`

	// PreviewDebounce delays a preview render after the last edit
	PreviewDebounce time.Duration `yaml:"preview_debounce" validate:"gt=0"`

	// PersistDebounce delays writing edit metadata after the last edit
	PersistDebounce time.Duration `yaml:"persist_debounce" validate:"gt=0"`

	// FullResolutionDebounce delays a full-resolution render request
	FullResolutionDebounce time.Duration `yaml:"full_resolution_debounce" validate:"gt=0"`

	// RenderTimeout bounds a single render engine call
	RenderTimeout time.Duration `yaml:"render_timeout" validate:"gt=0"`

	// MaskTimeout and PatchTimeout bound AI predictions
	MaskTimeout  time.Duration `yaml:"mask_timeout" validate:"gt=0"`
	PatchTimeout time.Duration `yaml:"patch_timeout" validate:"gt=0"`

	// PollInterval is how often to check prediction status
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// DefaultTimeouts returns the default timeout configuration
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		HistoryWindow:          300 * time.Millisecond,
		PreviewDebounce:        75 * time.Millisecond,
		PersistDebounce:        400 * time.Millisecond,
		FullResolutionDebounce: 150 * time.Millisecond,
		RenderTimeout:          30 * time.Second,
		MaskTimeout:            60 * time.Second,
		PatchTimeout:           120 * time.Second,
		PollInterval:           2 * time.Second,
	}
}

// LoadTimeouts loads timeout configuration from environment variables.
// Values use Go duration syntax, e.g. "300ms" or "2s".
func LoadTimeouts() (TimeoutConfig, error) {
	config := DefaultTimeouts()

	overrides := []struct {
		env string
		dst *time.Duration
	}{
		{"PHOTO_SESSION_HISTORY_WINDOW", &config.HistoryWindow},
		{"PHOTO_SESSION_PREVIEW_DEBOUNCE", &config.PreviewDebounce},
		{"PHOTO_SESSION_PERSIST_DEBOUNCE", &config.PersistDebounce},
		{"PHOTO_SESSION_FULL_DEBOUNCE", &config.FullResolutionDebounce},
		{"PHOTO_SESSION_RENDER_TIMEOUT", &config.RenderTimeout},
		{"PHOTO_SESSION_MASK_TIMEOUT", &config.MaskTimeout},
		{"PHOTO_SESSION_PATCH_TIMEOUT", &config.PatchTimeout},
		{"REPLICATE_POLL_INTERVAL", &config.PollInterval},
	}
	for _, o := range overrides {
		val := os.Getenv(o.env)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return TimeoutConfig{}, fmt.Errorf("invalid %s: %w", o.env, err)
		}
		*o.dst = d
	}

	return config, nil
}

// TestTimeouts returns timeout configuration suitable for testing
func TestTimeouts() TimeoutConfig {
	return TimeoutConfig{
		HistoryWindow:          30 * time.Millisecond,
		PreviewDebounce:        10 * time.Millisecond,
		PersistDebounce:        40 * time.Millisecond,
		FullResolutionDebounce: 15 * time.Millisecond,
		RenderTimeout:          time.Second,
		MaskTimeout:            time.Second,
		PatchTimeout:           time.Second,
		PollInterval:           5 * time.Millisecond,
	}
}
