package annotation

import (
	"strings"
	"testing"

	"github.com/lewtec/postal-annotator/internal/domain"
)

func TestParseConfig(t *testing.T) {
	t.Run("empty config gets defaults", func(t *testing.T) {
		c, err := ParseConfig(strings.NewReader(""))
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if c.Server.Addr != DefaultAddr || c.Server.MaxUploadMB != DefaultMaxUploadMB {
			t.Errorf("server defaults not applied: %+v", c.Server)
		}
		if len(c.Categories) != len(domain.DefaultErrorCategories) {
			t.Errorf("Got %d categories, want the %d defaults", len(c.Categories), len(domain.DefaultErrorCategories))
		}
		if c.ThumbnailSize() != DefaultThumbnailSize || c.Language != "en" {
			t.Errorf("Got thumbnails=%d language=%s", c.ThumbnailSize(), c.Language)
		}
	})

	t.Run("sample config is valid", func(t *testing.T) {
		c, err := ParseConfig(strings.NewReader(SampleConfig))
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if c.Meta.Title != "Postal Annotator" || len(c.Categories) != 6 {
			t.Errorf("Got %+v", c)
		}
	})

	t.Run("zero thumbnail size disables resizing", func(t *testing.T) {
		c, err := ParseConfig(strings.NewReader("thumbnails:\n  max_size: 0\n"))
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if c.ThumbnailSize() != 0 {
			t.Errorf("ThumbnailSize() = %d, want 0", c.ThumbnailSize())
		}
	})

	t.Run("reports every problem", func(t *testing.T) {
		_, err := ParseConfig(strings.NewReader(`
categories: [Torn, Torn, ""]
language: de
`))
		if err == nil {
			t.Fatal("Expected an error")
		}
		for _, want := range []string{"listed twice", "empty category", `"de"`} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q should mention %s", err, want)
			}
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		if _, err := ParseConfig(strings.NewReader("categories: [")); err == nil {
			t.Error("Expected an error")
		}
	})
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir() + "/nope.yaml"); err == nil {
		t.Error("Expected an error")
	}
}
