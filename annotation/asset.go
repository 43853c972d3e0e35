package annotation

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/postal-annotator/internal/domain"
)

// handleAsset serves one image of a group, shrunk to the configured
// thumbnail size
func (a *AnnotatorApp) handleAsset(w http.ResponseWriter, r *http.Request) {
	s := GetSession(r.Context())
	category, ok := domain.ParseCategory(r.PathValue("category"))
	if s == nil || !ok || !slices.Contains(domain.ImageCategories, category) {
		http.NotFound(w, r)
		return
	}

	// only hold the session while resolving the path
	s.Lock()
	var (
		path  string
		found bool
		fs    billy.Filesystem
	)
	if _, _, group, ok := lookupGroup(r, s); ok {
		path, found = group.Path(category)
		fs = s.Dataset.FS
	}
	s.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}

	hash, err := HashFile(fs, path)
	if err != nil {
		log.Printf("error: http: while hashing %s: %s", path, err)
		http.NotFound(w, r)
		return
	}
	size := a.Config.ThumbnailSize()
	etag := fmt.Sprintf(`"%s-%d"`, hash, size)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	img, format, err := DecodeImage(fs, path)
	if err != nil {
		log.Printf("warning: http: serving %s unchanged: %s", path, err)
		serveRaw(w, r, fs, path)
		return
	}
	var buf bytes.Buffer
	contentType, err := EncodeImage(&buf, Thumbnail(img, size), format)
	if err != nil {
		serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

func serveRaw(w http.ResponseWriter, r *http.Request, fs billy.Filesystem, path string) {
	f, err := fs.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := fs.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
