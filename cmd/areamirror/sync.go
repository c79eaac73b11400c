package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"areamirror/internal/db"
	"areamirror/internal/mirror"
	"areamirror/internal/registry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "One-shot reconcile from registry to database",
	Long: `Read the registry file once and reconcile the areas table against it,
then exit. Useful for cron-style setups and for verifying configuration
before running the daemon.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		snapshot, err := registry.ReadSnapshot(cfg.RegistryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading registry: %v\n", err)
			os.Exit(1)
		}

		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.InitSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		result, err := mirror.New(database, nil, nil).Apply(context.Background(), snapshot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reconciling: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Sync complete: %d areas (inserted=%d updated=%d deleted=%d)\n",
			len(snapshot), result.Inserted, result.Updated, result.Deleted)
	},
}
