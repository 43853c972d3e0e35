package dataset

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalidArchive means the upload could not be read as a zip archive
var ErrInvalidArchive = errors.New("upload is not a readable zip archive")

// ExtractZip unpacks the archive into root on fsys. Entries that cannot be
// extracted are skipped and reported together in the returned error; the
// count covers the files that were written.
func ExtractZip(r io.ReaderAt, size int64, fsys billy.Filesystem, root string) (int, error) {
	zr, err := zip.NewReader(r, size)
	// insecure names are rejected per entry below
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("while creating extraction dir '%s': %w", root, err)
	}

	var result *multierror.Error
	extracted := 0
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || isMetadataEntry(entry.Name) {
			continue
		}
		name, ok := safeEntryName(entry.Name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("entry '%s': unsafe path", entry.Name))
			continue
		}
		if err := extractEntry(entry, fsys, filepath.Join(root, name)); err != nil {
			result = multierror.Append(result, fmt.Errorf("entry '%s': %w", entry.Name, err))
			continue
		}
		extracted++
	}
	log.Printf("dataset: extracted %d of %d archive entries into %s", extracted, len(zr.File), root)
	return extracted, result.ErrorOrNil()
}

func extractEntry(entry *zip.File, fsys billy.Filesystem, dst string) error {
	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	f, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// safeEntryName rejects names that would land outside the extraction root
func safeEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || path.IsAbs(name) {
		return "", false
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return filepath.FromSlash(clean), true
}

// isMetadataEntry matches the resource-fork copies macOS adds to archives,
// which would otherwise be classified next to the real files
func isMetadataEntry(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}
