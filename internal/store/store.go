// Package store holds the annotations of one reviewing session.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lewtec/postal-annotator/internal/domain"
)

var (
	// ErrUnknownGroup is returned when a mutation addresses a group that is
	// not part of the current upload
	ErrUnknownGroup = errors.New("unknown group")
	// ErrUnknownCategory is returned for a group label outside the configured categories
	ErrUnknownCategory = errors.New("unknown error category")
)

// Store is the Annotation Store: typed operations over the four label
// mappings of a session. Every operation fully replaces what it addresses.
type Store struct {
	repo       domain.AnnotationRepository
	categories []string
	groups     *domain.GroupCollection
}

// New creates a store over repo accepting the given error categories. An
// empty category list means domain.DefaultErrorCategories.
func New(repo domain.AnnotationRepository, categories []string) *Store {
	if len(categories) == 0 {
		categories = domain.DefaultErrorCategories
	}
	return &Store{repo: repo, categories: categories}
}

// Categories returns the accepted group error categories
func (s *Store) Categories() []string {
	return s.categories
}

// UseGroups restricts mutations to the keys of groups. A nil collection
// accepts any key. Annotations stored for other keys are kept.
func (s *Store) UseGroups(groups *domain.GroupCollection) {
	s.groups = groups
}

func (s *Store) checkKey(key domain.GroupKey) error {
	if s.groups == nil {
		return nil
	}
	if _, ok := s.groups.Get(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, key)
	}
	return nil
}

// SetGroupLabels replaces the error categories assigned to a group
func (s *Store) SetGroupLabels(ctx context.Context, key domain.GroupKey, labels []string) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	set := domain.NewLabelSet(labels...)
	for _, label := range set {
		if !s.isCategory(label) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, label)
		}
	}
	return s.repo.SetGroupLabels(ctx, key, set)
}

func (s *Store) isCategory(label string) bool {
	for _, c := range s.categories {
		if c == label {
			return true
		}
	}
	return false
}

// SetDigitLabel replaces the label of one digit position. corrected must be
// given iff tag is domain.DigitIncorrect.
func (s *Store) SetDigitLabel(ctx context.Context, key domain.GroupKey, position int, tag domain.DigitTag, predicted int, corrected *int) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	if position < 0 {
		return fmt.Errorf("invalid digit position %d", position)
	}
	label, err := domain.NewDigitLabel(tag, predicted, corrected)
	if err != nil {
		return fmt.Errorf("while labeling digit %d of %s: %w", position, key, err)
	}
	return s.repo.SetDigitLabel(ctx, key, position, label)
}

// SubmitDigits replaces the labels of every displayed digit at once.
// Positions in incorrect map to their corrected value, positions in unknown
// are tagged Unknown and every other position is tagged Correct.
func (s *Store) SubmitDigits(ctx context.Context, key domain.GroupKey, digits []int, incorrect map[int]int, unknown map[int]bool) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	labels := make(map[int]domain.DigitLabel, len(digits))
	for i, predicted := range digits {
		var (
			label domain.DigitLabel
			err   error
		)
		if corrected, ok := incorrect[i]; ok {
			label, err = domain.NewDigitLabel(domain.DigitIncorrect, predicted, &corrected)
		} else if unknown[i] {
			label, err = domain.NewDigitLabel(domain.DigitUnknown, predicted, nil)
		} else {
			label, err = domain.NewDigitLabel(domain.DigitCorrect, predicted, nil)
		}
		if err != nil {
			return fmt.Errorf("while labeling digit %d of %s: %w", i, key, err)
		}
		labels[i] = label
	}
	return s.repo.SetDigitLabels(ctx, key, labels)
}

// SetWordLabel replaces the tag of one word
func (s *Store) SetWordLabel(ctx context.Context, key domain.GroupKey, word string, tag domain.WordTag) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	if _, err := domain.ParseWordTag(string(tag)); err != nil {
		return err
	}
	return s.repo.SetWordLabel(ctx, key, word, tag)
}

// SubmitWords replaces the labels of every displayed word at once. Words in
// incorrect are tagged False, the rest True. Repeated words share one label.
func (s *Store) SubmitWords(ctx context.Context, key domain.GroupKey, words []string, incorrect map[string]bool) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	labels := make(map[string]domain.WordTag, len(words))
	for _, word := range words {
		if incorrect[word] {
			labels[word] = domain.WordIncorrect
		} else {
			labels[word] = domain.WordCorrect
		}
	}
	return s.repo.SetWordLabels(ctx, key, labels)
}

// SetMissedWords replaces the missed words of a group
func (s *Store) SetMissedWords(ctx context.Context, key domain.GroupKey, words []string) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	if words == nil {
		words = []string{}
	}
	return s.repo.SetMissedWords(ctx, key, words)
}

// ParseMissedWords splits the free-text missed word input on commas
func ParseMissedWords(input string) []string {
	words := []string{}
	for _, w := range strings.Split(input, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// SubmitMissedWords stores the words typed by the reviewer. Blank input is
// ignored and leaves the stored words untouched; it reports whether
// anything was saved.
func (s *Store) SubmitMissedWords(ctx context.Context, key domain.GroupKey, input string) (bool, error) {
	if strings.TrimSpace(input) == "" {
		return false, nil
	}
	if err := s.SetMissedWords(ctx, key, ParseMissedWords(input)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GroupLabels(ctx context.Context, key domain.GroupKey) (domain.LabelSet, error) {
	labels, _, err := s.repo.GetGroupLabels(ctx, key)
	return labels, err
}

func (s *Store) DigitLabels(ctx context.Context, key domain.GroupKey) (map[int]domain.DigitLabel, error) {
	labels, _, err := s.repo.GetDigitLabels(ctx, key)
	return labels, err
}

func (s *Store) WordLabels(ctx context.Context, key domain.GroupKey) (map[string]domain.WordTag, error) {
	labels, _, err := s.repo.GetWordLabels(ctx, key)
	return labels, err
}

func (s *Store) MissedWords(ctx context.Context, key domain.GroupKey) ([]string, error) {
	words, _, err := s.repo.GetMissedWords(ctx, key)
	return words, err
}

// Snapshot copies the whole store, for export and statistics
func (s *Store) Snapshot(ctx context.Context) (*domain.AnnotationSnapshot, error) {
	return s.repo.Snapshot(ctx)
}

// LabeledCount returns how many of keys have had their group labels saved,
// an empty selection included
func (s *Store) LabeledCount(ctx context.Context, keys []domain.GroupKey) (int, error) {
	count := 0
	for _, key := range keys {
		_, ok, err := s.repo.GetGroupLabels(ctx, key)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
