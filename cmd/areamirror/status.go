package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"areamirror/internal/db"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the mirrored areas table",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

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

		ctx := context.Background()

		count, err := database.CountAreas(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting areas: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database: %s\n", cfg.DatabasePath)
		fmt.Printf("Areas: %d\n", count)

		if count == 0 {
			return
		}

		areas, err := database.ListAreas(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing areas: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		for _, area := range areas {
			line := fmt.Sprintf("  %-24s %s", area.ID, area.Name)
			if area.FloorID != "" {
				line += fmt.Sprintf("  (floor: %s)", area.FloorID)
			}
			if len(area.Labels) > 0 {
				line += fmt.Sprintf("  [%s]", strings.Join(area.Labels, ", "))
			}
			fmt.Println(line)
		}
	},
}
