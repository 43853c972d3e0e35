package annotation

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v6"
)

// HashFile returns the hex sha256 of a file, used as the asset ETag
func HashFile(fs billy.Filesystem, filepath string) (string, error) {
	f, err := fs.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
