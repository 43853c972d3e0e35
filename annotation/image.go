package annotation

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/go-git/go-billy/v6"
	"github.com/nfnt/resize"
)

// DecodeImage reads an image from fs and returns it with its format name
func DecodeImage(fs billy.Filesystem, filepath string) (image.Image, string, error) {
	f, err := fs.Open(filepath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	m, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("while decoding image '%s': %w", filepath, err)
	}
	return m, format, nil
}

// Thumbnail shrinks img so neither side exceeds maxSize, keeping the aspect
// ratio. Smaller images and maxSize 0 return img unchanged.
func Thumbnail(img image.Image, maxSize int) image.Image {
	if maxSize <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return img
	}
	return resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)
}

// EncodeImage writes img as JPEG when it came from a JPEG and as PNG
// otherwise, returning the content type
func EncodeImage(w io.Writer, img image.Image, format string) (string, error) {
	if format == "jpeg" {
		return "image/jpeg", jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	}
	return "image/png", png.Encode(w, img)
}
