package dataset

import (
	"errors"
	"log"

	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/postal-annotator/internal/domain"
)

// ErrNoGroups means an upload produced nothing to annotate
var ErrNoGroups = errors.New("no image groups were found in the upload")

// BuildGroups joins the buckets on the normalized key. Categories are visited
// in domain.Categories order and files in bucket order; when two files of one
// category share a key the last one wins.
func BuildGroups(buckets domain.FileBucket) *domain.GroupCollection {
	groups := domain.NewGroupCollection()
	for _, category := range domain.Categories {
		for _, path := range buckets[category] {
			groups.Set(Normalize(path), category, path)
		}
	}
	return groups
}

// Dataset is one classified and grouped upload
type Dataset struct {
	Root    string
	FS      billy.Filesystem
	Buckets domain.FileBucket
	Groups  *domain.GroupCollection
}

// Counts returns the number of files per category
func (d *Dataset) Counts() map[domain.Category]int {
	counts := make(map[domain.Category]int, len(domain.Categories))
	for _, c := range domain.Categories {
		counts[c] = len(d.Buckets[c])
	}
	return counts
}

// Load classifies and groups the files under root. ErrNoGroups is returned
// together with the (empty) dataset so callers can still show the counts.
func Load(fsys billy.Filesystem, root string) (*Dataset, error) {
	buckets, err := Classify(fsys, root)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Root: root, FS: fsys, Buckets: buckets, Groups: BuildGroups(buckets)}
	log.Printf("dataset: %d files in %d groups under %s", buckets.Total(), ds.Groups.Len(), root)
	if ds.Groups.Len() == 0 {
		return ds, ErrNoGroups
	}
	return ds, nil
}
