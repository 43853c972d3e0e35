package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultErrorCategories are the group error categories offered when the
// configuration does not list its own
var DefaultErrorCategories = []string{
	"Wrong receiver",
	"Wrong postcode",
	"Bad image quality",
	"Poor preprocessing",
	"Postcode digit detection error",
	"Receiver word detection error",
}

// DigitTag is the reviewer verdict for one predicted digit. The values are
// the strings written to exports.
type DigitTag string

const (
	DigitCorrect   DigitTag = "True"
	DigitIncorrect DigitTag = "False"
	DigitUnknown   DigitTag = "Unknown"
)

// ParseDigitTag accepts both the export form (True/False/Unknown) and the
// form form (Correct/Incorrect/Unknown)
func ParseDigitTag(s string) (DigitTag, error) {
	switch strings.TrimSpace(s) {
	case "True", "Correct":
		return DigitCorrect, nil
	case "False", "Incorrect":
		return DigitIncorrect, nil
	case "Unknown":
		return DigitUnknown, nil
	}
	return "", fmt.Errorf("unknown digit tag %q", s)
}

// WordTag is the reviewer verdict for one extracted word
type WordTag string

const (
	WordCorrect   WordTag = "True"
	WordIncorrect WordTag = "False"
)

func ParseWordTag(s string) (WordTag, error) {
	switch strings.TrimSpace(s) {
	case "True", "Correct":
		return WordCorrect, nil
	case "False", "Incorrect":
		return WordIncorrect, nil
	}
	return "", fmt.Errorf("unknown word tag %q", s)
}

var (
	ErrMissingCorrection    = errors.New("an incorrect digit needs a corrected value")
	ErrUnexpectedCorrection = errors.New("only incorrect digits carry a corrected value")
	ErrDigitOutOfRange      = errors.New("corrected digit must be between 0 and 9")
)

// DigitLabelShape tells which representation a digit label was stored in
type DigitLabelShape int

const (
	// DigitLabelLegacy is the bare tag written by older sessions
	DigitLabelLegacy DigitLabelShape = iota
	// DigitLabelRecord carries the predicted value and, when incorrect, the correction
	DigitLabelRecord
)

// DigitLabel is the label of one digit position. Legacy labels only have a Tag.
type DigitLabel struct {
	Shape     DigitLabelShape
	Tag       DigitTag
	Predicted int
	// Corrected is set iff Tag is DigitIncorrect on a record-shaped label
	Corrected *int
}

// LegacyDigitLabel wraps a bare tag
func LegacyDigitLabel(tag DigitTag) DigitLabel {
	return DigitLabel{Shape: DigitLabelLegacy, Tag: tag}
}

// NewDigitLabel builds a record-shaped label. corrected is required iff tag is
// DigitIncorrect.
func NewDigitLabel(tag DigitTag, predicted int, corrected *int) (DigitLabel, error) {
	if _, err := ParseDigitTag(string(tag)); err != nil {
		return DigitLabel{}, err
	}
	if tag == DigitIncorrect {
		if corrected == nil {
			return DigitLabel{}, ErrMissingCorrection
		}
		if *corrected < 0 || *corrected > 9 {
			return DigitLabel{}, ErrDigitOutOfRange
		}
		c := *corrected
		corrected = &c
	} else if corrected != nil {
		return DigitLabel{}, ErrUnexpectedCorrection
	}
	return DigitLabel{Shape: DigitLabelRecord, Tag: tag, Predicted: predicted, Corrected: corrected}, nil
}

func (d DigitLabel) IsLegacy() bool {
	return d.Shape == DigitLabelLegacy
}

type digitRecord struct {
	Label      DigitTag `json:"label"`
	Predicted  *int     `json:"predicted,omitempty"`
	Correction *int     `json:"correct_value,omitempty"`
}

// MarshalJSON writes legacy labels as a bare string and records as an object
func (d DigitLabel) MarshalJSON() ([]byte, error) {
	if d.IsLegacy() {
		return json.Marshal(string(d.Tag))
	}
	predicted := d.Predicted
	return json.Marshal(digitRecord{Label: d.Tag, Predicted: &predicted, Correction: d.Corrected})
}

func (d *DigitLabel) UnmarshalJSON(data []byte) error {
	label, err := DecodeDigitLabel(data)
	if err != nil {
		return err
	}
	*d = label
	return nil
}

// DecodeDigitLabel reads either stored shape. A record without a predicted
// value is read as legacy since there is nothing more to export for it.
func DecodeDigitLabel(data []byte) (DigitLabel, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return DigitLabel{}, err
		}
		tag, err := ParseDigitTag(raw)
		if err != nil {
			return DigitLabel{}, err
		}
		return LegacyDigitLabel(tag), nil
	}
	var rec digitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DigitLabel{}, fmt.Errorf("while decoding digit label: %w", err)
	}
	tag, err := ParseDigitTag(string(rec.Label))
	if err != nil {
		return DigitLabel{}, err
	}
	if rec.Predicted == nil {
		return LegacyDigitLabel(tag), nil
	}
	label := DigitLabel{Shape: DigitLabelRecord, Tag: tag, Predicted: *rec.Predicted}
	if tag == DigitIncorrect && rec.Correction != nil {
		c := *rec.Correction
		label.Corrected = &c
	}
	return label, nil
}

// LabelSet is the ordered set of error categories assigned to a group
type LabelSet []string

// NewLabelSet drops blanks and duplicates, keeping first occurrence order
func NewLabelSet(labels ...string) LabelSet {
	seen := make(map[string]struct{}, len(labels))
	set := make(LabelSet, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		set = append(set, l)
	}
	return set
}

func (s LabelSet) Contains(label string) bool {
	for _, l := range s {
		if l == label {
			return true
		}
	}
	return false
}

// String joins the labels the way they are exported
func (s LabelSet) String() string {
	return strings.Join(s, "; ")
}

func (s *LabelSet) UnmarshalJSON(data []byte) error {
	set, err := DecodeGroupLabels(data)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// DecodeGroupLabels reads a list of labels or the legacy single label,
// where the empty string means no label
func DecodeGroupLabels(data []byte) (LabelSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return LabelSet{}, nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, err
		}
		return NewLabelSet(single), nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("while decoding group labels: %w", err)
	}
	return NewLabelSet(many...), nil
}

// AnnotationSnapshot is a point-in-time copy of the four label mappings.
// A key present in one mapping need not be present in the others.
type AnnotationSnapshot struct {
	GroupLabels map[GroupKey]LabelSet
	DigitLabels map[GroupKey]map[int]DigitLabel
	WordLabels  map[GroupKey]map[string]WordTag
	MissedWords map[GroupKey][]string
}

func NewAnnotationSnapshot() *AnnotationSnapshot {
	return &AnnotationSnapshot{
		GroupLabels: make(map[GroupKey]LabelSet),
		DigitLabels: make(map[GroupKey]map[int]DigitLabel),
		WordLabels:  make(map[GroupKey]map[string]WordTag),
		MissedWords: make(map[GroupKey][]string),
	}
}

// Keys returns the union of keys across all mappings in ascending order
func (s *AnnotationSnapshot) Keys() []GroupKey {
	seen := make(map[GroupKey]struct{})
	for k := range s.GroupLabels {
		seen[k] = struct{}{}
	}
	for k := range s.DigitLabels {
		seen[k] = struct{}{}
	}
	for k := range s.WordLabels {
		seen[k] = struct{}{}
	}
	for k := range s.MissedWords {
		seen[k] = struct{}{}
	}
	keys := make([]GroupKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// AnnotationRepository stores the four label mappings of one session. Every
// Set* call fully replaces what it addresses.
type AnnotationRepository interface {
	// SetGroupLabels replaces the label set of a group
	SetGroupLabels(ctx context.Context, key GroupKey, labels LabelSet) error

	// GetGroupLabels returns the label set of a group and whether one was stored
	GetGroupLabels(ctx context.Context, key GroupKey) (LabelSet, bool, error)

	// SetDigitLabels replaces every digit position of a group
	SetDigitLabels(ctx context.Context, key GroupKey, labels map[int]DigitLabel) error

	// SetDigitLabel replaces one digit position of a group
	SetDigitLabel(ctx context.Context, key GroupKey, position int, label DigitLabel) error

	// GetDigitLabels returns the digit labels of a group
	GetDigitLabels(ctx context.Context, key GroupKey) (map[int]DigitLabel, bool, error)

	// SetWordLabels replaces every word label of a group
	SetWordLabels(ctx context.Context, key GroupKey, labels map[string]WordTag) error

	// SetWordLabel replaces the tag of one word in a group
	SetWordLabel(ctx context.Context, key GroupKey, word string, tag WordTag) error

	// GetWordLabels returns the word labels of a group
	GetWordLabels(ctx context.Context, key GroupKey) (map[string]WordTag, bool, error)

	// SetMissedWords replaces the missed words of a group
	SetMissedWords(ctx context.Context, key GroupKey, words []string) error

	// GetMissedWords returns the missed words of a group
	GetMissedWords(ctx context.Context, key GroupKey) ([]string, bool, error)

	// Snapshot copies all four mappings
	Snapshot(ctx context.Context) (*AnnotationSnapshot, error)
}
