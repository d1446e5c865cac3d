package main

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/topical/internal/config"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/internal/storage/postgres"
	"github.com/scrypster/topical/internal/storage/sqlite"
)

// migrationsDir is set by the --dir flag; empty means migrations/<engine>.
var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage metadata store schema migrations",
	Long: `Apply or roll back plain-SQL schema migrations against the configured
metadata store. Migration files live in a per-dialect directory
(migrations/sqlite or migrations/postgres) and are named
NNN_name.up.sql / NNN_name.down.sql.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationManager(func(mgr *storage.MigrationManager) error {
			if err := mgr.Up(); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationManager(func(mgr *storage.MigrationManager) error {
			if err := mgr.Down(); err != nil {
				return err
			}
			fmt.Println("Migrations rolled back")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationManager(func(mgr *storage.MigrationManager) error {
			version, err := mgr.Version()
			if errors.Is(err, storage.ErrNoMigration) {
				fmt.Println("No migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Schema version %d\n", version)
			return nil
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "migrations directory (default: migrations/<engine>)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

// withMigrationManager opens the configured metadata store, builds a
// migration manager over its connection, and runs fn.
func withMigrationManager(fn func(*storage.MigrationManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, isPostgres, closeDB, err := openMetadataDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	dir := migrationsDir
	if dir == "" {
		dir = filepath.Join("migrations", cfg.Metadata.Engine)
	}

	mgr, err := storage.NewMigrationManager(db, dir, isPostgres)
	if err != nil {
		return err
	}

	return fn(mgr)
}

// openMetadataDB opens the configured metadata backend and exposes its raw
// connection for the migration manager.
func openMetadataDB(cfg *config.Config) (*sql.DB, bool, func() error, error) {
	switch cfg.Metadata.Engine {
	case "postgres":
		store, err := postgres.NewMetadataStore(cfg.Metadata.DSN)
		if err != nil {
			return nil, false, nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		return store.GetDB(), true, store.Close, nil
	default:
		store, err := sqlite.NewMetadataStore(cfg.Metadata.Path)
		if err != nil {
			return nil, false, nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		return store.GetDB(), false, store.Close, nil
	}
}
