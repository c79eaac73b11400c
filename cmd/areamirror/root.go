// Command areamirror mirrors a JSON area registry file into a SQLite table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"areamirror/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "areamirror",
	Short: "Mirror a JSON area registry into SQLite",
	Long: `areamirror keeps a SQLite areas table synchronized with the contents
of a Home Assistant style area registry file (.storage/core.area_registry).

It watches the registry for changes and reconciles the table so its rows
always match the file's current record set: new areas are inserted,
present ones overwritten, removed ones deleted.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./areamirror.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
