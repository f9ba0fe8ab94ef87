// Package main provides the coaching worker entry point for nowadays-coach.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Lartitiz/nowadays-coach/internal/checklist"
	"github.com/Lartitiz/nowadays-coach/internal/config"
	"github.com/Lartitiz/nowadays-coach/internal/db/sqlite"
	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/internal/watcher"
	"github.com/Lartitiz/nowadays-coach/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.nowadays-coach)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Ensure data directory and settings exist
	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	dbPath := config.DBPath()
	if *dataDir != "" {
		dbPath = *dataDir + "/coach.db"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down coaching worker")
		cancel()
	}()

	// Initialize SQLite store (migrations run automatically)
	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path:     dbPath,
		MaxConns: cfg.MaxConns,
		WALMode:  true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SQLite store")
	}
	defer store.Close()

	// Checklist registry, with optional override file and live reload
	registry := checklist.NewRegistry()
	if cfg.ChecklistPath != "" {
		registry, err = checklist.NewRegistryFromFile(cfg.ChecklistPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ChecklistPath).Msg("Failed to load checklist overrides")
		}
		if err := registry.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to start checklist watcher")
		} else {
			log.Info().Str("path", cfg.ChecklistPath).Msg("Checklist file watcher started")
		}
	}

	// Watch the settings file; a change exits the process so the supervisor
	// restarts it with fresh configuration.
	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.New(settingsPath, func() {
		log.Warn().Str("path", settingsPath).Msg("Settings changed, exiting for restart...")
		time.Sleep(100 * time.Millisecond) // Give logs time to flush
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	} else {
		defer settingsWatcher.Stop()
		log.Info().Str("path", settingsPath).Msg("Settings file watcher started")
	}

	client := inference.NewHTTPClient(cfg.InferenceURL, cfg.InferenceAPIKey)

	svc, err := worker.NewService(cfg, Version, store, registry, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize worker service")
	}
	defer svc.Shutdown()

	log.Info().Str("version", Version).Str("db", dbPath).Msg("Starting coaching worker")

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}
