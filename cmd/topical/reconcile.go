package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/lifecycle"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single orphan scan and exit",
	Long: `Scan the document store for collections whose owning topic or set no
longer exists and drop them. The server runs the same scan periodically;
this command is for one-shot repair, e.g. after restoring a backup of
one store but not the other.`,
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

		writer := journal.NewWriter(cfg.DataPath)
		sync := lifecycle.NewSynchronizer(meta, docs, writer, nil, lifecycle.Options{
			CleanupAttempts: cfg.Lifecycle.CleanupAttempts,
			CleanupBackoff:  cfg.Lifecycle.CleanupBackoffDuration(),
		})
		reconciler := lifecycle.NewReconciler(sync, cfg.DataPath, lifecycle.ReconcilerOptions{
			ScanRate: cfg.Lifecycle.ScanRate,
		})

		if err := reconciler.ScanOnce(context.Background()); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Println("Reconciliation scan complete")
		return nil
	},
}
