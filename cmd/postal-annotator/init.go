package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lewtec/postal-annotator/annotation"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Write a sample configuration file",
	Long: `Write a sample config.yaml into folder, the current directory by default.
An existing config is left untouched.

Example:
  postal-annotator init ./review`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}
		configFile := filepath.Join(dir, "config.yaml")

		if _, err := os.Stat(configFile); err == nil {
			log.Printf("Config file already exists: %s", configFile)
			return nil
		}
		log.Printf("Creating default config: %s", configFile)
		if err := annotation.WriteSampleConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
		fmt.Fprintln(cmd.OutOrStdout(), "  1. Review the error categories in", configFile)
		fmt.Fprintf(cmd.OutOrStdout(), "  2. Start the server: postal-annotator %s\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
