package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/lewtec/postal-annotator/internal/dataset"
	"github.com/lewtec/postal-annotator/internal/domain"
	"github.com/lewtec/postal-annotator/internal/extract"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan folder",
	Short: "Show how an extracted batch folder would be grouped",
	Long: `Classify the files under folder the same way an upload is classified
and print the file count per category followed by one line per group with
its parsed digits and words.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		fs := osfs.New("/")
		ds, err := dataset.Load(fs, root)
		if err != nil && !errors.Is(err, dataset.ErrNoGroups) {
			return err
		}
		out := cmd.OutOrStdout()
		counts := ds.Counts()
		for _, c := range domain.Categories {
			fmt.Fprintf(out, "%s\t%d\n", c, counts[c])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		return printGroups(out, ds, extract.NewExtractor(fs))
	},
}

func printGroups(w io.Writer, ds *dataset.Dataset, extractor *extract.Extractor) error {
	fmt.Fprintln(w, strings.Join([]string{"number", "group_key", "files", "digits", "words"}, "\t"))
	for i, key := range ds.Groups.Keys() {
		group, _ := ds.Groups.Get(key)
		var digits, words string
		if path, ok := group.Path(domain.CategoryDigits); ok {
			values, err := extractor.Digits(path)
			if err != nil {
				digits = "!"
			}
			digits += joinInts(values)
		}
		if path, ok := group.Path(domain.CategoryWords); ok {
			values, err := extractor.Words(path)
			if err != nil {
				words = "!"
			}
			words += strings.Join(values, " ")
		}
		_, err := fmt.Fprintln(w, strings.Join([]string{strconv.Itoa(i + 1), string(key), strconv.Itoa(len(group)), digits, words}, "\t"))
		if err != nil {
			return err
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "")
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
