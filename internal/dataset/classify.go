package dataset

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/util"

	"github.com/lewtec/postal-annotator/internal/domain"
)

// classifyOrder is the precedence used when a directory path contains more
// than one category name
var classifyOrder = []domain.Category{
	domain.CategoryDigits,
	domain.CategoryWords,
	domain.CategoryPostcodeRaw,
	domain.CategoryPostcodePreprocessed,
	domain.CategoryReceiverRaw,
	domain.CategoryReceiverPreprocessed,
	domain.CategoryImages,
}

// CategoryOf returns the category for a directory path relative to the
// dataset root
func CategoryOf(dir string) (domain.Category, bool) {
	for _, c := range classifyOrder {
		if strings.Contains(dir, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Classify walks root and buckets every file by the directory it lives in.
// Files outside any category directory are dropped. Each bucket is sorted so
// that grouping does not depend on the filesystem listing order.
func Classify(fsys billy.Filesystem, root string) (domain.FileBucket, error) {
	buckets := domain.NewFileBucket()
	root = filepath.Clean(root)
	err := util.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if filepath.Clean(path) == root {
				return err
			}
			log.Printf("warning: dataset: skipping %s: %s", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			log.Printf("warning: dataset: skipping %s: %s", path, err)
			return nil
		}
		category, ok := CategoryOf(filepath.ToSlash(filepath.Dir(rel)))
		if !ok {
			return nil
		}
		buckets[category] = append(buckets[category], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("while scanning dataset '%s': %w", root, err)
	}
	for _, paths := range buckets {
		sort.Strings(paths)
	}
	return buckets, nil
}
