package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/lewtec/postal-annotator/internal/export"
	"github.com/lewtec/postal-annotator/internal/repository"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export database",
	Short: "Write the annotations of a saved session as CSV",
	Long: `Write the annotations stored in a session database, as kept under
--sessions-dir, in the same CSV layout as the web download.

Example:
  postal-annotator export sessions/0b6c....db -o annotations.csv
  postal-annotator export sessions/0b6c....db -o -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db, err := repository.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := repository.NewAnnotationRepository(db).Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		table := export.Export(snap)

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = export.FileName(time.Now())
		}
		var w io.Writer = cmd.OutOrStdout()
		if output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := table.WriteCSV(w); err != nil {
			return err
		}
		if output != "-" {
			log.Printf("Exported %d groups to %s", len(table.Rows), output)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default postal_annotations_<timestamp>.csv)")
}
