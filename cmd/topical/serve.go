package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/topical/internal/config"
	"github.com/scrypster/topical/internal/engine"
	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/lifecycle"
	"github.com/scrypster/topical/internal/server"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/internal/storage/docstore"
	"github.com/scrypster/topical/internal/storage/postgres"
	"github.com/scrypster/topical/internal/storage/sqlite"
	"github.com/scrypster/topical/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Topical HTTP server",
	Long: `Run the HTTP API with its websocket event stream and the background
reconciler that replays journaled cleanup failures and sweeps orphaned
document collections.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		meta, docs, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer meta.Close()
		defer docs.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := handlers.NewEventHub()
		go hub.Run()

		writer := journal.NewWriter(cfg.DataPath)
		sync := lifecycle.NewSynchronizer(meta, docs, writer, hub, lifecycle.Options{
			CleanupAttempts: cfg.Lifecycle.CleanupAttempts,
			CleanupBackoff:  cfg.Lifecycle.CleanupBackoffDuration(),
		})

		eng, err := engine.New(meta, docs, sync, hub)
		if err != nil {
			return err
		}

		reconciler := lifecycle.NewReconciler(sync, cfg.DataPath, lifecycle.ReconcilerOptions{
			Interval: cfg.Lifecycle.ReconcileIntervalDuration(),
			ScanRate: cfg.Lifecycle.ScanRate,
		})
		go func() {
			if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("reconciler stopped: %v", err)
			}
		}()

		addr, err := server.Start(ctx, cfg, eng, hub)
		if err != nil {
			return err
		}
		log.Printf("Topical API running at http://%s", addr)

		// Wait for interrupt signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		cancel()
		time.Sleep(1 * time.Second) // Give time for connections to close
		return nil
	},
}

// openStores opens the metadata and document stores per the configured
// engine. The data directory is created if missing so the SQLite files and
// the cleanup journal have somewhere to live.
func openStores(cfg *config.Config) (storage.MetadataStore, *docstore.Store, error) {
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var meta storage.MetadataStore
	var err error
	switch cfg.Metadata.Engine {
	case "postgres":
		meta, err = postgres.NewMetadataStore(cfg.Metadata.DSN)
	default:
		meta, err = sqlite.NewMetadataStore(cfg.Metadata.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	docs, err := docstore.New(cfg.Documents.Path)
	if err != nil {
		meta.Close()
		return nil, nil, fmt.Errorf("failed to open document store: %w", err)
	}

	return meta, docs, nil
}
