package export

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lewtec/postal-annotator/internal/domain"
)

func digit(t *testing.T, tag domain.DigitTag, predicted int, corrected *int) domain.DigitLabel {
	t.Helper()
	label, err := domain.NewDigitLabel(tag, predicted, corrected)
	if err != nil {
		t.Fatalf("NewDigitLabel() error = %v", err)
	}
	return label
}

func intPtr(v int) *int { return &v }

func TestExport_RowsAreTheUnionOfKeys(t *testing.T) {
	snap := domain.NewAnnotationSnapshot()
	snap.GroupLabels["A"] = domain.NewLabelSet("Wrong postcode")
	snap.GroupLabels["B"] = domain.NewLabelSet()
	snap.DigitLabels["B"] = map[int]domain.DigitLabel{0: domain.LegacyDigitLabel(domain.DigitCorrect)}
	snap.DigitLabels["C"] = map[int]domain.DigitLabel{0: domain.LegacyDigitLabel(domain.DigitCorrect)}
	snap.MissedWords["D"] = []string{"x"}

	table := Export(snap)

	var keys []string
	for _, row := range table.Rows {
		keys = append(keys, row[ColumnGroupKey])
	}
	if want := []string{"A", "B", "C", "D"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("Got rows %v, want %v", keys, want)
	}
}

func TestExport_GroupLabel(t *testing.T) {
	legacy, _ := domain.DecodeGroupLabels([]byte(`"Wrong receiver"`))
	list, _ := domain.DecodeGroupLabels([]byte(`["Wrong receiver", "Bad image quality"]`))

	snap := domain.NewAnnotationSnapshot()
	snap.GroupLabels["legacy"] = legacy
	snap.GroupLabels["list"] = list
	snap.MissedWords["none"] = []string{}

	table := Export(snap)
	got := map[string]string{}
	for _, row := range table.Rows {
		got[row[ColumnGroupKey]] = row[ColumnGroupLabel]
	}

	want := map[string]string{
		"legacy": "Wrong receiver",
		"list":   "Wrong receiver; Bad image quality",
		"none":   "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Got %v, want %v", got, want)
	}
}

func TestExport_Digits(t *testing.T) {
	snap := domain.NewAnnotationSnapshot()
	snap.DigitLabels["wrong"] = map[int]domain.DigitLabel{3: digit(t, domain.DigitIncorrect, 7, intPtr(1))}
	snap.DigitLabels["right"] = map[int]domain.DigitLabel{3: digit(t, domain.DigitCorrect, 5, nil)}
	snap.DigitLabels["old"] = map[int]domain.DigitLabel{3: domain.LegacyDigitLabel(domain.DigitUnknown)}

	table := Export(snap)
	rows := map[string]Row{}
	for _, row := range table.Rows {
		rows[row[ColumnGroupKey]] = row
	}

	t.Run("incorrect carries prediction and correction", func(t *testing.T) {
		row := rows["wrong"]
		if row["digit_3"] != "False" || row["digit_3_predicted"] != "7" || row["digit_3_correct"] != "1" {
			t.Errorf("Got %v", row)
		}
	})

	t.Run("correct has no correction", func(t *testing.T) {
		row := rows["right"]
		if row["digit_3"] != "True" || row["digit_3_predicted"] != "5" {
			t.Errorf("Got %v", row)
		}
		if _, ok := row.Get("digit_3_correct"); ok {
			t.Error("correct digit should not populate digit_3_correct")
		}
	})

	t.Run("legacy label only has the tag", func(t *testing.T) {
		row := rows["old"]
		if row["digit_3"] != "Unknown" {
			t.Errorf("Got %v", row)
		}
		if _, ok := row.Get("digit_3_predicted"); ok {
			t.Error("legacy digit should not populate digit_3_predicted")
		}
	})
}

func TestExport_Columns(t *testing.T) {
	snap := domain.NewAnnotationSnapshot()
	snap.DigitLabels["a"] = map[int]domain.DigitLabel{
		10: digit(t, domain.DigitCorrect, 1, nil),
		2:  digit(t, domain.DigitIncorrect, 3, intPtr(8)),
	}
	snap.WordLabels["a"] = map[string]domain.WordTag{"tehran": domain.WordCorrect}
	snap.WordLabels["b"] = map[string]domain.WordTag{"box": domain.WordIncorrect}
	snap.GroupLabels["c"] = domain.NewLabelSet("Wrong receiver")

	table := Export(snap)

	t.Run("order is fixed then digits then words", func(t *testing.T) {
		want := []string{
			"group_key", "group_label",
			"digit_2", "digit_2_predicted", "digit_2_correct",
			"digit_10", "digit_10_predicted",
			"word_box", "word_tehran",
			"missed_words",
		}
		if !reflect.DeepEqual(table.Columns, want) {
			t.Errorf("Columns = %v, want %v", table.Columns, want)
		}
	})

	t.Run("rows without words keep other groups' word columns", func(t *testing.T) {
		records := table.Records()
		if len(records) != 4 {
			t.Fatalf("Got %d records, want header + 3", len(records))
		}
		c := records[3]
		if c[0] != "c" || c[1] != "Wrong receiver" {
			t.Errorf("Got %v", c)
		}
		for i, column := range table.Columns {
			if strings.HasPrefix(column, "word_") && c[i] != "" {
				t.Errorf("%s = %q, want empty", column, c[i])
			}
		}
		if _, ok := table.Rows[2].Get("word_box"); ok {
			t.Error("absent word should not be stored on the row")
		}
	})
}

func TestExport_IsFreshEveryCall(t *testing.T) {
	snap := domain.NewAnnotationSnapshot()
	snap.MissedWords["a"] = []string{"x"}
	first := Export(snap)

	snap.MissedWords["b"] = []string{"y", "z"}
	second := Export(snap)

	if len(first.Rows) != 1 || len(second.Rows) != 2 {
		t.Errorf("Got %d and %d rows", len(first.Rows), len(second.Rows))
	}
	if second.Rows[1][ColumnMissedWords] != "y, z" {
		t.Errorf("missed_words = %q, want %q", second.Rows[1][ColumnMissedWords], "y, z")
	}
}

func TestTable_WriteCSV(t *testing.T) {
	snap := domain.NewAnnotationSnapshot()
	snap.GroupLabels["a"] = domain.NewLabelSet("Wrong receiver", "Wrong postcode")
	snap.MissedWords["a"] = []string{"تهران", "box"}

	var buf bytes.Buffer
	if err := Export(snap).WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "group_key,group_label,missed_words\na,Wrong receiver; Wrong postcode,\"تهران, box\"\n"
	if buf.String() != want {
		t.Errorf("Got %q, want %q", buf.String(), want)
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := FileName(at); got != "postal_annotations_20240309_140507.csv" {
		t.Errorf("FileName() = %q", got)
	}
}
