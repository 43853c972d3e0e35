// Package dataset turns an extracted upload into image groups: files are
// classified by directory, then joined on a key derived from their names.
package dataset

import (
	"path/filepath"
	"strings"

	"github.com/lewtec/postal-annotator/internal/domain"
)

// keySuffixes are tested in order and at most one is removed
var keySuffixes = []string{"_receiver", "_postcode", "_words_extracted", "_digits_extracted"}

// Normalize derives the group key of a file: its base name without the
// extension and without one known suffix. Names ending in none of the
// suffixes are returned unchanged.
func Normalize(path string) domain.GroupKey {
	name := filepath.Base(filepath.FromSlash(path))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		// dotfiles like ".hidden" have no extension to strip
		stem = name
	}
	for _, suffix := range keySuffixes {
		if strings.HasSuffix(stem, suffix) {
			return domain.GroupKey(strings.TrimSuffix(stem, suffix))
		}
	}
	return domain.GroupKey(stem)
}
