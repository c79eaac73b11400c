package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"areamirror/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file",
	Long: `Write a starter areamirror.yaml with the default settings.
Pass a path to write somewhere else. Refuses to overwrite an existing file.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "areamirror.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Wrote %s\n", path)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
