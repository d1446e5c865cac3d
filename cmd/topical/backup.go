package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/topical/internal/backup"
	"github.com/scrypster/topical/internal/config"
)

// backupDir is set by the --dir flag; empty means {data_path}/backups.
var backupDir string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage snapshots of the SQLite stores",
	Long: `Create, list, restore, and prune point-in-time snapshots of the
SQLite-backed stores. Snapshots are taken with VACUUM INTO, so the server
may stay running while a snapshot is created. Restoring requires the
server to be stopped.

With the postgres metadata engine only the document store is snapshotted;
back up the relational half with pg_dump.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, sources, err := backupService()
		if err != nil {
			return err
		}

		result, err := svc.Create(sources)
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot created at %s (%d files, %s)\n",
			result.Dir, len(result.Files), result.Duration.Round(0))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := backupService()
		if err != nil {
			return err
		}

		snapshots, err := svc.List()
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			fmt.Println("No snapshots found")
			return nil
		}

		for _, snap := range snapshots {
			fmt.Printf("%s  %10d bytes  %s\n",
				snap.Timestamp.Format("2006-01-02 15:04:05"), snap.Size, snap.Dir)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-dir>",
	Short: "Restore the stores from a snapshot",
	Long: `Restore the store databases from the given snapshot directory. The
server must be stopped; restoring under a live server corrupts the WAL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, sources, err := backupService()
		if err != nil {
			return err
		}

		if err := svc.Restore(args[0], sources); err != nil {
			return err
		}

		fmt.Println("Restore complete")
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove snapshots outside the retention policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := backupService()
		if err != nil {
			return err
		}

		removed, err := svc.Prune()
		if err != nil {
			return err
		}

		fmt.Printf("Pruned %d snapshots\n", len(removed))
		return nil
	},
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDir, "dir", "", "backup directory (default: {data_path}/backups)")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupPruneCmd)

	rootCmd.AddCommand(backupCmd)
}

// backupService builds the service plus the name-to-path map of databases
// it should cover under the current configuration.
func backupService() (*backup.Service, map[string]string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	dir := backupDir
	if dir == "" {
		dir = defaultBackupDir(cfg)
	}

	sources := map[string]string{
		"documents.db": cfg.Documents.Path,
	}
	if cfg.Metadata.Engine == "sqlite" {
		sources["metadata.db"] = cfg.Metadata.Path
	}

	return backup.NewService(dir, backup.RetentionPolicy{}, true), sources, nil
}

func defaultBackupDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataPath, "backups")
}
