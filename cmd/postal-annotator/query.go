package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/lewtec/postal-annotator/internal/repository"
	"github.com/spf13/cobra"
)

// annotationTables are the tables query can dump
var annotationTables = []string{"group_labels", "digit_labels", "word_labels", "missed_words"}

func PrintQuery(ctx context.Context, w io.Writer, db *sql.Tx, query string, args ...interface{}) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	result, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer result.Close()
	columns, err := result.Columns()
	if err != nil {
		return err
	}
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	pointers := make([]interface{}, len(columns))
	container := make([]string, len(columns))
	for i := 0; i < len(columns); i++ {
		pointers[i] = &container[i]
	}
	for result.Next() {
		if err := result.Scan(pointers...); err != nil {
			return err
		}
		fmt.Fprintln(w, strings.Join(container, "\t"))
	}
	return result.Err()
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query database [table] [group_key]",
	Short: "Dump the raw stored values of a session database",
	Long: `Without a table, list the tables that hold annotations. With a table,
print every group key with its stored JSON value, or only the given group.

Examples:
  postal-annotator query sessions/0b6c....db
  postal-annotator query sessions/0b6c....db digit_labels pkg01`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db, err := repository.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		tx, err := db.BeginTx(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		out := cmd.OutOrStdout()
		if len(args) < 2 {
			for _, table := range annotationTables {
				fmt.Fprintln(out, table)
			}
			return nil
		}
		table := args[1]
		if !slices.Contains(annotationTables, table) {
			return fmt.Errorf("unknown table %q, expected one of %s", table, strings.Join(annotationTables, ", "))
		}

		query := fmt.Sprintf("select group_key, value from %s", table)
		queryArgs := []interface{}{}
		if len(args) == 3 {
			query += " where group_key = ?"
			queryArgs = append(queryArgs, args[2])
		}
		query += " order by group_key"
		return PrintQuery(cmd.Context(), out, tx, query, queryArgs...)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
