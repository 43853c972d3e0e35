package dataset

import (
	"archive/zip"
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"

	"github.com/lewtec/postal-annotator/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		path string
		want domain.GroupKey
	}{
		{"/d/images/pkg01.jpg", "pkg01"},
		{"/d/receiver_raw/pkg01_receiver.png", "pkg01"},
		{"/d/postcode_raw/pkg01_postcode.png", "pkg01"},
		{"/d/words/pkg01_words_extracted.txt", "pkg01"},
		{"/d/digits/pkg01_digits_extracted.txt", "pkg01"},
		{"pkg01_postcode_receiver.png", "pkg01_postcode"},
		{"pkg01_receiver_x.png", "pkg01_receiver_x"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Normalize(tt.path); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		dir  string
		want domain.Category
		ok   bool
	}{
		{"out/images", domain.CategoryImages, true},
		{"out/postcode_raw", domain.CategoryPostcodeRaw, true},
		{"images/postcode_raw", domain.CategoryPostcodeRaw, true},
		{"digits/words", domain.CategoryDigits, true},
		{"receiver_preprocessed", domain.CategoryReceiverPreprocessed, true},
		{"misc", "", false},
		{".", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, ok := CategoryOf(tt.dir)
			if got != tt.want || ok != tt.ok {
				t.Errorf("CategoryOf(%q) = %q, %v, want %q, %v", tt.dir, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func touch(t *testing.T, fsys billy.Filesystem, path string) {
	t.Helper()
	if err := util.WriteFile(fsys, path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func sampleDataset(t *testing.T) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	touch(t, fsys, "/data/batch/images/b.jpg")
	touch(t, fsys, "/data/batch/images/a.jpg")
	touch(t, fsys, "/data/batch/postcode_raw/a_postcode.png")
	touch(t, fsys, "/data/batch/postcode_preprocessed/a_postcode.png")
	touch(t, fsys, "/data/batch/receiver_raw/a_receiver.png")
	touch(t, fsys, "/data/batch/receiver_preprocessed/b_receiver.png")
	touch(t, fsys, "/data/batch/digits/a_digits_extracted.txt")
	touch(t, fsys, "/data/batch/words/c_words_extracted.txt")
	touch(t, fsys, "/data/batch/notes/readme.txt")
	touch(t, fsys, "/data/top.txt")
	return fsys
}

func TestClassify(t *testing.T) {
	fsys := sampleDataset(t)

	buckets, err := Classify(fsys, "/data")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	t.Run("returns every category", func(t *testing.T) {
		for _, c := range domain.Categories {
			if _, ok := buckets[c]; !ok {
				t.Errorf("missing bucket %s", c)
			}
		}
	})

	t.Run("drops unclassifiable files", func(t *testing.T) {
		if buckets.Total() != 8 {
			t.Errorf("Total() = %d, want 8", buckets.Total())
		}
	})

	t.Run("sorts each bucket", func(t *testing.T) {
		want := []string{filepath.Join("/data/batch/images", "a.jpg"), filepath.Join("/data/batch/images", "b.jpg")}
		if !reflect.DeepEqual(buckets[domain.CategoryImages], want) {
			t.Errorf("images = %v, want %v", buckets[domain.CategoryImages], want)
		}
	})

	t.Run("missing root is an error", func(t *testing.T) {
		if _, err := Classify(fsys, "/nope"); err == nil {
			t.Error("Expected an error")
		}
	})
}

func TestBuildGroups(t *testing.T) {
	fsys := sampleDataset(t)
	buckets, err := Classify(fsys, "/data")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	groups := BuildGroups(buckets)

	t.Run("keys follow category then file order", func(t *testing.T) {
		want := []domain.GroupKey{"a", "b", "c"}
		if !reflect.DeepEqual(groups.Keys(), want) {
			t.Errorf("Keys() = %v, want %v", groups.Keys(), want)
		}
	})

	t.Run("joins categories on the key", func(t *testing.T) {
		a, _ := groups.Get("a")
		if len(a) != 5 {
			t.Errorf("group a has %d categories, want 5: %v", len(a), a)
		}
		if _, ok := a.Path(domain.CategoryWords); ok {
			t.Error("group a should have no words file")
		}
		c, _ := groups.Get("c")
		if len(c) != 1 {
			t.Errorf("group c = %v, want words only", c)
		}
	})

	t.Run("is idempotent on sorted input", func(t *testing.T) {
		again := BuildGroups(buckets)
		if !reflect.DeepEqual(groups, again) {
			t.Error("two builds over the same buckets differ")
		}
	})

	t.Run("last file wins on key collision", func(t *testing.T) {
		collide := domain.NewFileBucket()
		collide[domain.CategoryImages] = []string{"/d/images/x.jpg", "/d/images/x.png"}
		g := BuildGroups(collide)
		x, _ := g.Get("x")
		if g.Len() != 1 || x[domain.CategoryImages] != "/d/images/x.png" {
			t.Errorf("Got %v", x)
		}
	})
}

func TestLoad_NoGroups(t *testing.T) {
	fsys := memfs.New()
	touch(t, fsys, "/empty/misc/readme.txt")

	ds, err := Load(fsys, "/empty")
	if !errors.Is(err, ErrNoGroups) {
		t.Fatalf("Load() error = %v, want ErrNoGroups", err)
	}
	if ds == nil || ds.Groups.Len() != 0 {
		t.Error("Expected an empty dataset alongside the error")
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"batch/images/a.jpg":                  "img",
		"batch/digits/a_digits_extracted.txt": "Extracted Digits: [1, 2]",
		"__MACOSX/batch/images/._a.jpg":       "fork",
		"../escape.txt":                       "nope",
		"batch/words/a_words_extracted.txt":   "Individual Words: a, 0",
	})
	fsys := memfs.New()

	n, err := ExtractZip(bytes.NewReader(data), int64(len(data)), fsys, "/upload")

	t.Run("extracts the safe entries", func(t *testing.T) {
		if n != 3 {
			t.Errorf("extracted %d files, want 3", n)
		}
		content, rerr := util.ReadFile(fsys, "/upload/batch/digits/a_digits_extracted.txt")
		if rerr != nil || string(content) != "Extracted Digits: [1, 2]" {
			t.Errorf("unexpected content %q (%v)", content, rerr)
		}
	})

	t.Run("reports unsafe entries without aborting", func(t *testing.T) {
		if err == nil || !strings.Contains(err.Error(), "../escape.txt") {
			t.Errorf("error = %v, want mention of ../escape.txt", err)
		}
	})

	t.Run("skips macOS metadata", func(t *testing.T) {
		if _, serr := fsys.Stat("/upload/__MACOSX"); serr == nil {
			t.Error("__MACOSX should not be extracted")
		}
	})

	t.Run("rejects non archives", func(t *testing.T) {
		junk := []byte("not a zip")
		if _, err := ExtractZip(bytes.NewReader(junk), int64(len(junk)), memfs.New(), "/x"); !errors.Is(err, ErrInvalidArchive) {
			t.Errorf("error = %v, want ErrInvalidArchive", err)
		}
	})
}
