// Package export flattens the annotation store into one row per group.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lewtec/postal-annotator/internal/domain"
)

const (
	ColumnGroupKey    = "group_key"
	ColumnGroupLabel  = "group_label"
	ColumnMissedWords = "missed_words"

	digitPrefix     = "digit_"
	predictedSuffix = "_predicted"
	correctSuffix   = "_correct"
	wordPrefix      = "word_"
)

// Row maps column names to values. Columns a group has no data for are
// absent, which is not the same as an empty value.
type Row map[string]string

// Get returns the value of column and whether the row has it
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// Table is the export, rows ordered by group key and columns being the
// union of every row's columns
type Table struct {
	Columns []string
	Rows    []Row
}

// Export builds a fresh table from snap. Every key present in any of the
// four mappings produces a row.
func Export(snap *domain.AnnotationSnapshot) *Table {
	keys := snap.Keys()
	table := &Table{Rows: make([]Row, 0, len(keys))}

	positions := make(map[int]struct{})
	words := make(map[string]struct{})
	has := make(map[string]bool)

	for _, key := range keys {
		row := Row{
			ColumnGroupKey:    string(key),
			ColumnGroupLabel:  snap.GroupLabels[key].String(),
			ColumnMissedWords: strings.Join(snap.MissedWords[key], ", "),
		}
		for position, label := range snap.DigitLabels[key] {
			positions[position] = struct{}{}
			for column, value := range digitCells(position, label) {
				row[column] = value
				has[column] = true
			}
		}
		for word, tag := range snap.WordLabels[key] {
			words[word] = struct{}{}
			row[wordPrefix+word] = string(tag)
		}
		table.Rows = append(table.Rows, row)
	}

	table.Columns = []string{ColumnGroupKey, ColumnGroupLabel}
	for _, position := range sortedPositions(positions) {
		base := digitPrefix + strconv.Itoa(position)
		for _, column := range []string{base, base + predictedSuffix, base + correctSuffix} {
			if has[column] {
				table.Columns = append(table.Columns, column)
			}
		}
	}
	for _, word := range sortedWords(words) {
		table.Columns = append(table.Columns, wordPrefix+word)
	}
	table.Columns = append(table.Columns, ColumnMissedWords)
	return table
}

// digitCells renders one digit label. Legacy labels only have the tag, and
// only incorrect records carry the corrected value.
func digitCells(position int, label domain.DigitLabel) map[string]string {
	base := digitPrefix + strconv.Itoa(position)
	cells := map[string]string{base: string(label.Tag)}
	if label.IsLegacy() {
		return cells
	}
	cells[base+predictedSuffix] = strconv.Itoa(label.Predicted)
	if label.Tag == domain.DigitIncorrect && label.Corrected != nil {
		cells[base+correctSuffix] = strconv.Itoa(*label.Corrected)
	}
	return cells
}

func sortedPositions(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func sortedWords(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Records returns the dense table with a header row, absent cells empty
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, append([]string(nil), t.Columns...))
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, column := range t.Columns {
			record[i] = row[column]
		}
		records = append(records, record)
	}
	return records
}

// WriteCSV writes the dense table as CSV
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("while writing csv: %w", err)
	}
	return nil
}

// FileName is the download name of an export taken at now
func FileName(now time.Time) string {
	return "postal_annotations_" + now.Format("20060102_150405") + ".csv"
}
