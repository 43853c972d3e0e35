// Package extract parses the digit and word files produced by the OCR step.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-git/go-billy/v6"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrPatternNotFound means the file has no line in the expected shape
	ErrPatternNotFound = errors.New("expected pattern not found")
	// ErrInvalidEncoding means the file is not valid text
	ErrInvalidEncoding = errors.New("file is not valid UTF-8 text")
)

var (
	digitsPattern = regexp.MustCompile(`Extracted Digits:\s*\[([^\]]+)\]`)
	wordsPattern  = regexp.MustCompile(`Individual Words:\s*(.+)`)
)

// noWord marks a word position the extractor left empty
const noWord = "0"

// ParseDigits returns the integers listed in an "Extracted Digits: [...]"
// line. Tokens that are not made only of decimal digits are dropped.
func ParseDigits(content string) ([]int, error) {
	match := digitsPattern.FindStringSubmatch(content)
	if match == nil {
		return []int{}, ErrPatternNotFound
	}
	digits := []int{}
	for _, token := range strings.Split(match[1], ",") {
		if value, ok := decimalValue(strings.TrimSpace(token)); ok {
			digits = append(digits, value)
		}
	}
	return digits, nil
}

// ParseWords returns the comma separated words of an "Individual Words:"
// line, without the "0" placeholders
func ParseWords(content string) ([]string, error) {
	match := wordsPattern.FindStringSubmatch(content)
	if match == nil {
		return []string{}, ErrPatternNotFound
	}
	words := []string{}
	for _, token := range strings.Split(match[1], ",") {
		token = strings.TrimSpace(token)
		if token == noWord {
			continue
		}
		words = append(words, token)
	}
	return words, nil
}

// decimalValue accepts ASCII digits plus the Arabic-Indic and Persian
// digit blocks the OCR emits for Persian labels. Values that do not fit an
// int are rejected.
func decimalValue(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	var ascii strings.Builder
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			ascii.WriteRune(r)
		case r >= '٠' && r <= '٩':
			ascii.WriteRune('0' + r - '٠')
		case r >= '۰' && r <= '۹':
			ascii.WriteRune('0' + r - '۰')
		default:
			return 0, false
		}
	}
	value, err := strconv.Atoi(ascii.String())
	if err != nil {
		return 0, false
	}
	return value, true
}

// DecodeText reads UTF-8 or BOM-marked UTF-16 text. Bytes that are not
// valid UTF-8 fail instead of being replaced.
func DecodeText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !hasUTF16BOM(data) && !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	return string(decoded), nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff})
}

type digitsResult struct {
	digits []int
	err    error
}

type wordsResult struct {
	words []string
	err   error
}

// Extractor reads extracted-text files from a dataset filesystem. Results,
// failures included, are cached by path since files do not change once an
// upload is extracted.
type Extractor struct {
	fs     billy.Filesystem
	mu     sync.RWMutex
	digits map[string]digitsResult
	words  map[string]wordsResult
}

func NewExtractor(fs billy.Filesystem) *Extractor {
	return &Extractor{
		fs:     fs,
		digits: make(map[string]digitsResult),
		words:  make(map[string]wordsResult),
	}
}

func (e *Extractor) read(path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return DecodeText(f)
}

// Digits parses the digits file at path. On failure the slice is empty and
// the error describes a recoverable warning.
func (e *Extractor) Digits(path string) ([]int, error) {
	e.mu.RLock()
	cached, ok := e.digits[path]
	e.mu.RUnlock()
	if ok {
		return cached.digits, cached.err
	}

	var result digitsResult
	content, err := e.read(path)
	if err != nil {
		result = digitsResult{digits: []int{}, err: fmt.Errorf("while reading digits file '%s': %w", path, err)}
	} else if digits, err := ParseDigits(content); err != nil {
		result = digitsResult{digits: digits, err: fmt.Errorf("while parsing digits file '%s': %w", path, err)}
	} else {
		result = digitsResult{digits: digits}
	}

	e.mu.Lock()
	e.digits[path] = result
	e.mu.Unlock()
	return result.digits, result.err
}

// Words parses the words file at path, with the same failure contract as Digits
func (e *Extractor) Words(path string) ([]string, error) {
	e.mu.RLock()
	cached, ok := e.words[path]
	e.mu.RUnlock()
	if ok {
		return cached.words, cached.err
	}

	var result wordsResult
	content, err := e.read(path)
	if err != nil {
		result = wordsResult{words: []string{}, err: fmt.Errorf("while reading words file '%s': %w", path, err)}
	} else if words, err := ParseWords(content); err != nil {
		result = wordsResult{words: words, err: fmt.Errorf("while parsing words file '%s': %w", path, err)}
	} else {
		result = wordsResult{words: words}
	}

	e.mu.Lock()
	e.words[path] = result
	e.mu.Unlock()
	return result.words, result.err
}
