package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gomcpgo/photo_edit_session/pkg/ai"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/config"
	"github.com/gomcpgo/photo_edit_session/pkg/storage"
)

// Version information (set by build script)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	configFile string
	debugFlag  bool
	mockAI     bool
)

var rootCmd = &cobra.Command{
	Use:           "photo-session",
	Short:         "Drive a photo edit session from the command line",
	Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file applied over the environment")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging (same as DEBUG_MODE=true)")
	replayCmd.Flags().BoolVar(&mockAI, "mock-ai", false, "Answer AI requests with canned masks instead of calling Replicate")

	rootCmd.AddCommand(replayCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() error {
	c, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if configFile != "" {
		if err := c.LoadFile(configFile); err != nil {
			return err
		}
	}
	if debugFlag {
		c.DebugMode = true
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	level := slog.LevelInfo
	if cfg.DebugMode {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// openStore returns the configured metadata store and its closer.
func openStore() (client.MetadataStore, func(), error) {
	switch cfg.Store {
	case config.StoreBadger:
		db, err := storage.OpenBadger(storage.BadgerConfig{
			Path:   cfg.StorePath,
			Logger: logger.With("component", "badger"),
		})
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close badger", "error", err)
			}
		}, nil
	case config.StoreMemory:
		return storage.NewMemory(), func() {}, nil
	default:
		return storage.NewSidecar(), func() {}, nil
	}
}

func newEngine() client.RenderEngine {
	if cfg.RenderEngineURL == "" {
		logger.Warn("no render engine configured, using the built-in mock")
		return client.NewMockEngine()
	}
	return client.NewHTTPEngine(cfg.RenderEngineURL, client.HTTPEngineOptions{
		Timeout: cfg.Timeouts.RenderTimeout,
		Logger:  logger.With("component", "engine"),
	})
}

// newAI returns nil when AI edits are unavailable.
func newAI() client.AIService {
	if mockAI {
		return client.NewMockAI()
	}
	if !cfg.AIEnabled() {
		logger.Info("REPLICATE_API_TOKEN not set, AI masks and patches are disabled")
		return nil
	}
	rc := client.NewReplicateClient(cfg.ReplicateAPIToken, client.ReplicateOptions{
		PollInterval: cfg.Timeouts.PollInterval,
		Logger:       logger.With("component", "replicate"),
	})
	return ai.New(rc, ai.Options{
		MaskTimeout:  cfg.Timeouts.MaskTimeout,
		PatchTimeout: cfg.Timeouts.PatchTimeout,
		Logger:       logger.With("component", "ai"),
	})
}
