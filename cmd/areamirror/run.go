package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"areamirror/internal/daemon"
	"areamirror/internal/dashboard"
	"areamirror/internal/db"
	"areamirror/internal/logging"
	"areamirror/internal/mirror"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mirror daemon",
	Long: `Run the mirror daemon until interrupted.

On startup the daemon:
  1. Opens (creating if needed) the SQLite database and the areas table
  2. Performs an initial sync so the table matches the registry file
  3. Watches the registry for changes and reconciles on each one

The registry file must exist; a missing registry is the one fatal startup
error. Everything after startup is retried, never fatal.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		logOpts := logging.Options{File: cfg.LogFile}
		daemonLogger := logging.New("[daemon] ", logOpts)
		mirrorLogger := logging.New("[mirror] ", logOpts)

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

		var events mirror.Events
		if cfg.DashboardPort > 0 {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: logging.New("[dashboard] ", logOpts),
			})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() {
				if err := server.Stop(); err != nil {
					daemonLogger.Printf("Error stopping dashboard: %v", err)
				}
			}()
			events = server
		}

		reconciler := mirror.New(database, mirrorLogger, events)

		d, err := daemon.New(reconciler, cfg.RegistryPath, &daemon.Config{
			PollInterval:  cfg.PollInterval,
			DrainInterval: cfg.DrainInterval,
			QueueSize:     cfg.QueueSize,
			UseWatcher:    cfg.UseWatcher,
			Logger:        daemonLogger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}
