// Package stats summarizes a session's annotations for the dashboard.
package stats

import (
	"sort"

	"github.com/lewtec/postal-annotator/internal/domain"
)

// Count is a named tally
type Count struct {
	Name  string
	Count int
}

// WordBreakdown counts the groups tagging a word each way
type WordBreakdown struct {
	Word      string
	Correct   int
	Incorrect int
}

// HistogramBin counts the groups with exactly Words missed words
type HistogramBin struct {
	Words  int
	Groups int
}

type Stats struct {
	TotalGroups   int
	LabeledGroups int
	TotalLabels   int
	LabelCounts   []Count

	DigitTags []Count
	// Confusion is indexed [actual][predicted] over incorrect digits with a correction
	Confusion      [10][10]int
	ConfusionTotal int

	Words []WordBreakdown

	MissedHistogram []HistogramBin
	MissedFrequency []Count
}

// Empty reports whether there is nothing annotated yet
func (s *Stats) Empty() bool {
	return s.TotalGroups == 0
}

// Compute derives the dashboard figures. Groups are the same rows the
// export would produce.
func Compute(snap *domain.AnnotationSnapshot) *Stats {
	keys := snap.Keys()
	s := &Stats{TotalGroups: len(keys)}

	labels := map[string]int{}
	tags := map[domain.DigitTag]int{}
	words := map[string]*WordBreakdown{}
	histogram := map[int]int{}
	missed := map[string]int{}

	for _, key := range keys {
		set := snap.GroupLabels[key]
		if len(set) > 0 {
			s.LabeledGroups++
		}
		for _, l := range set {
			labels[l]++
			s.TotalLabels++
		}

		for _, d := range snap.DigitLabels[key] {
			tags[d.Tag]++
			if d.IsLegacy() || d.Tag != domain.DigitIncorrect || d.Corrected == nil {
				continue
			}
			if inDigitRange(d.Predicted) && inDigitRange(*d.Corrected) {
				s.Confusion[*d.Corrected][d.Predicted]++
				s.ConfusionTotal++
			}
		}

		for word, tag := range snap.WordLabels[key] {
			b, ok := words[word]
			if !ok {
				b = &WordBreakdown{Word: word}
				words[word] = b
			}
			if tag == domain.WordIncorrect {
				b.Incorrect++
			} else {
				b.Correct++
			}
		}

		histogram[len(snap.MissedWords[key])]++
		for _, w := range snap.MissedWords[key] {
			missed[w]++
		}
	}

	s.LabelCounts = sortedCounts(labels)
	for _, tag := range []domain.DigitTag{domain.DigitCorrect, domain.DigitIncorrect, domain.DigitUnknown} {
		if tags[tag] > 0 {
			s.DigitTags = append(s.DigitTags, Count{Name: string(tag), Count: tags[tag]})
		}
	}
	for _, b := range words {
		s.Words = append(s.Words, *b)
	}
	sort.Slice(s.Words, func(i, j int) bool { return s.Words[i].Word < s.Words[j].Word })
	for n, groups := range histogram {
		s.MissedHistogram = append(s.MissedHistogram, HistogramBin{Words: n, Groups: groups})
	}
	sort.Slice(s.MissedHistogram, func(i, j int) bool { return s.MissedHistogram[i].Words < s.MissedHistogram[j].Words })
	s.MissedFrequency = sortedCounts(missed)
	return s
}

func inDigitRange(d int) bool {
	return d >= 0 && d <= 9
}

// sortedCounts orders by count descending, then name
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
