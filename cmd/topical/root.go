package main

import (
	"github.com/spf13/cobra"

	"github.com/scrypster/topical/internal/config"
)

// configFile is set by the --config flag.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "topical",
	Short: "Topical is a hybrid metadata and document storage service",
	Long: `Topical stores relational metadata (topics, sets, entities) alongside
schemaless document collections, and keeps the two halves consistent
across deletes. The serve command runs the HTTP API; reconcile and
migrate cover out-of-band repair and schema management.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: built-in defaults plus TOPICAL_ environment variables)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration from defaults, the
// optional --config file, and TOPICAL_ environment variables.
func loadConfig() (*config.Config, error) {
	return config.LoadConfigFromFile(configFile)
}
