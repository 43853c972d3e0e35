package annotation

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lewtec/postal-annotator/internal/domain"
	"github.com/lewtec/postal-annotator/internal/store"
)

type imageSlot struct {
	Category domain.Category
	URL      string
	Present  bool
}

type digitRow struct {
	Position  int
	Value     int
	Tag       string
	Corrected int
}

type wordRow struct {
	Word      string
	Incorrect bool
}

type categoryOption struct {
	Name    string
	Checked bool
}

func groupURL(index int) string {
	return fmt.Sprintf("/group/%d", index)
}

// lookupGroup resolves the {index} path value against the session's groups
func lookupGroup(r *http.Request, s *Session) (int, domain.GroupKey, domain.ImageGroup, bool) {
	groups := s.Groups()
	if groups == nil {
		return 0, "", nil, false
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, "", nil, false
	}
	key, group, ok := groups.At(index)
	return index, key, group, ok
}

// groupDigits returns the parsed digits of a group and a warning when the
// file could not be parsed
func groupDigits(s *Session, group domain.ImageGroup) ([]int, bool, string) {
	path, ok := group.Path(domain.CategoryDigits)
	if !ok {
		return nil, false, ""
	}
	digits, err := s.Extractor.Digits(path)
	if err != nil {
		log.Printf("warning: extract: %s", err)
		return digits, true, err.Error()
	}
	return digits, true, ""
}

func groupWords(s *Session, group domain.ImageGroup) ([]string, bool, string) {
	path, ok := group.Path(domain.CategoryWords)
	if !ok {
		return nil, false, ""
	}
	words, err := s.Extractor.Words(path)
	if err != nil {
		log.Printf("warning: extract: %s", err)
		return words, true, err.Error()
	}
	return words, true, ""
}

func (a *AnnotatorApp) handleJump(w http.ResponseWriter, r *http.Request, s *Session) {
	groups := s.Groups()
	if groups == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	index := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("number")); err == nil {
		index = min(max(n-1, 0), groups.Len()-1)
	}
	http.Redirect(w, r, groupURL(index), http.StatusSeeOther)
}

func (a *AnnotatorApp) handleGroup(w http.ResponseWriter, r *http.Request, s *Session) {
	if s.Groups() == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	index, key, group, ok := lookupGroup(r, s)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	total := s.Groups().Len()

	images := make([]imageSlot, 0, len(domain.ImageCategories))
	for _, c := range domain.ImageCategories {
		_, present := group.Path(c)
		images = append(images, imageSlot{
			Category: c,
			URL:      fmt.Sprintf("/asset/%d/%s", index, c),
			Present:  present,
		})
	}

	labels, err := s.Store.GroupLabels(ctx, key)
	if err != nil {
		serverError(w, err)
		return
	}
	options := make([]categoryOption, 0, len(s.Store.Categories()))
	for _, c := range s.Store.Categories() {
		options = append(options, categoryOption{Name: c, Checked: labels.Contains(c)})
	}

	digits, hasDigits, digitsWarning := groupDigits(s, group)
	digitLabels, err := s.Store.DigitLabels(ctx, key)
	if err != nil {
		serverError(w, err)
		return
	}
	digitRows := make([]digitRow, 0, len(digits))
	for i, d := range digits {
		row := digitRow{Position: i, Value: d, Tag: "Correct"}
		if label, ok := digitLabels[i]; ok {
			switch label.Tag {
			case domain.DigitIncorrect:
				row.Tag = "Incorrect"
				if label.Corrected != nil {
					row.Corrected = *label.Corrected
				}
			case domain.DigitUnknown:
				row.Tag = "Unknown"
			}
		}
		digitRows = append(digitRows, row)
	}

	words, hasWords, wordsWarning := groupWords(s, group)
	wordLabels, err := s.Store.WordLabels(ctx, key)
	if err != nil {
		serverError(w, err)
		return
	}
	wordRows := make([]wordRow, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, word := range words {
		if seen[word] {
			continue
		}
		seen[word] = true
		wordRows = append(wordRows, wordRow{Word: word, Incorrect: wordLabels[word] == domain.WordIncorrect})
	}

	missed, err := s.Store.MissedWords(ctx, key)
	if err != nil {
		serverError(w, err)
		return
	}
	labeled, err := s.Store.LabeledCount(ctx, s.Groups().Keys())
	if err != nil {
		serverError(w, err)
		return
	}

	RenderPageWithRequest(r, w, http.StatusOK, "group", map[string]any{
		"Title":         string(key),
		"Index":         index,
		"Number":        index + 1,
		"Total":         total,
		"Labeled":       labeled,
		"Key":           key,
		"HasPrev":       index > 0,
		"HasNext":       index < total-1,
		"Images":        images,
		"Options":       options,
		"HasLabels":     len(labels) > 0,
		"HasDigits":     hasDigits,
		"DigitsWarning": digitsWarning,
		"Digits":        digitRows,
		"DigitSummary":  summarizeDigits(digitLabels),
		"HasWords":      hasWords,
		"WordsWarning":  wordsWarning,
		"Words":         wordRows,
		"WordSummary":   summarizeWords(wordLabels),
		"MissedWords":   strings.Join(missed, ", "),
		"Saved":         r.URL.Query().Get("saved"),
	})
}

type tagSummary struct {
	Correct, Incorrect, Unknown int
	Any                         bool
}

func summarizeDigits(labels map[int]domain.DigitLabel) tagSummary {
	var sum tagSummary
	for _, l := range labels {
		sum.Any = true
		switch l.Tag {
		case domain.DigitCorrect:
			sum.Correct++
		case domain.DigitIncorrect:
			sum.Incorrect++
		case domain.DigitUnknown:
			sum.Unknown++
		}
	}
	return sum
}

func summarizeWords(labels map[string]domain.WordTag) tagSummary {
	var sum tagSummary
	for _, tag := range labels {
		sum.Any = true
		if tag == domain.WordIncorrect {
			sum.Incorrect++
		} else {
			sum.Correct++
		}
	}
	return sum
}

// saved redirects back to the group page after a form submission
func saved(w http.ResponseWriter, r *http.Request, index int, what string) {
	http.Redirect(w, r, groupURL(index)+"?saved="+what, http.StatusSeeOther)
}

// submissionError maps store validation errors to 400
func submissionError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, store.ErrUnknownCategory),
		errors.Is(err, store.ErrUnknownGroup),
		errors.Is(err, domain.ErrMissingCorrection),
		errors.Is(err, domain.ErrDigitOutOfRange):
		status = http.StatusBadRequest
	default:
		serverError(w, err)
		return
	}
	log.Printf("warning: http: rejected submission: %s", err)
	http.Error(w, err.Error(), status)
}

func (a *AnnotatorApp) handleGroupLabels(w http.ResponseWriter, r *http.Request, s *Session) {
	index, key, _, ok := lookupGroup(r, s)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Store.SetGroupLabels(r.Context(), key, r.PostForm["label"]); err != nil {
		submissionError(w, err)
		return
	}
	saved(w, r, index, "labels")
}

func (a *AnnotatorApp) handleDigits(w http.ResponseWriter, r *http.Request, s *Session) {
	index, key, group, ok := lookupGroup(r, s)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	digits, _, _ := groupDigits(s, group)
	incorrect := map[int]int{}
	unknown := map[int]bool{}
	for i := range digits {
		value := r.PostFormValue(fmt.Sprintf("digit_%d", i))
		if value == "" {
			continue
		}
		tag, err := domain.ParseDigitTag(value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch tag {
		case domain.DigitIncorrect:
			corrected, err := strconv.Atoi(stringOr(r.PostFormValue(fmt.Sprintf("correct_%d", i)), "0"))
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid correction for digit %d", i), http.StatusBadRequest)
				return
			}
			incorrect[i] = corrected
		case domain.DigitUnknown:
			unknown[i] = true
		}
	}
	if err := s.Store.SubmitDigits(r.Context(), key, digits, incorrect, unknown); err != nil {
		submissionError(w, err)
		return
	}
	saved(w, r, index, "digits")
}

func (a *AnnotatorApp) handleWords(w http.ResponseWriter, r *http.Request, s *Session) {
	index, key, group, ok := lookupGroup(r, s)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	words, _, _ := groupWords(s, group)
	incorrect := map[string]bool{}
	for _, word := range r.PostForm["incorrect"] {
		incorrect[word] = true
	}
	if err := s.Store.SubmitWords(r.Context(), key, words, incorrect); err != nil {
		submissionError(w, err)
		return
	}
	saved(w, r, index, "words")
}

func (a *AnnotatorApp) handleMissedWords(w http.ResponseWriter, r *http.Request, s *Session) {
	index, key, _, ok := lookupGroup(r, s)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := s.Store.SubmitMissedWords(r.Context(), key, r.PostFormValue("missed"))
	if err != nil {
		submissionError(w, err)
		return
	}
	if !stored {
		http.Redirect(w, r, groupURL(index), http.StatusSeeOther)
		return
	}
	saved(w, r, index, "missed")
}
