package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Qredence/skill-fleet/internal/config"
	"github.com/Qredence/skill-fleet/internal/database"
	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/llm/providers"
	"github.com/Qredence/skill-fleet/internal/pipeline"
	"github.com/Qredence/skill-fleet/internal/taxonomy"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "skillfleet",
	Short: "skillfleet - skill document generation pipeline",
	Long: `skillfleet turns free-text task descriptions into validated skill
documents through a three-phase pipeline: understanding, generation,
and validation. Jobs suspend for human input when the pipeline needs
clarification, corrections, or a borderline review decision, and resume
from exactly where they left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default $SKILLFLEET_HOME/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(versionCmd)
}

// app bundles the wired dependencies a command needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *database.DB
	store      *database.JobDAO
	bus        *events.DefaultBus
	registry   llm.Registry
	controller *pipeline.Controller
}

// Close releases the app's resources.
func (a *app) Close() error {
	a.bus.Close()
	return a.db.Close()
}

// loadAppConfig resolves the config file and loads it, falling back to
// defaults when no file exists.
func loadAppConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		home := os.Getenv("SKILLFLEET_HOME")
		if home == "" {
			if userHome, err := os.UserHomeDir(); err == nil {
				home = filepath.Join(userHome, ".skillfleet")
			} else {
				home = ".skillfleet"
			}
		}
		path = filepath.Join(home, "config.yaml")
	}

	loader := config.NewLoader(config.NewValidator())
	return loader.LoadWithDefaults(path)
}

// setupLogger builds the process logger from config and the verbose flag.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose || cfg.Core.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildApp wires the full pipeline stack from config.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg)

	registry, err := providers.BuildRegistry(cfg.Provider)
	if err != nil {
		return nil, err
	}
	provider, err := registry.Get(cfg.Provider.Type.String())
	if err != nil {
		return nil, err
	}

	gateway := inference.NewGateway(provider,
		inference.WithRetryPolicy(cfg.Inference.RetryPolicy()),
		inference.WithCallTimeout(cfg.Inference.CallTimeout),
		inference.WithModel(cfg.Provider.DefaultModel),
		inference.WithSampling(cfg.Inference.Temperature, cfg.Inference.MaxTokens),
		inference.WithLogger(logger),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	dbCfg := database.DefaultConfig(cfg.Database.Path)
	dbCfg.MaxOpenConns = cfg.Database.MaxConnections
	if cfg.Database.BusyTimeout > 0 {
		dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	}
	db, err := database.OpenWithConfig(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store, err := taxonomy.NewFSStore(cfg.Taxonomy.Root)
	if err != nil {
		db.Close()
		return nil, err
	}

	bus := events.NewBus(events.WithDefaultBufferSize(cfg.Events.BufferSize))
	dao := database.NewJobDAO(db)

	controller := pipeline.NewController(gateway, dao, cfg.Quality,
		pipeline.WithBus(bus),
		pipeline.WithTaxonomyStore(store),
		pipeline.WithControllerLogger(logger),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      dao,
		bus:        bus,
		registry:   registry,
		controller: controller,
	}, nil
}
