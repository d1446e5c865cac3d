// Package main provides the topical CLI: the HTTP server plus
// operational subcommands for reconciliation and schema migrations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
