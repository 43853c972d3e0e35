package annotation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/postal-annotator/internal/domain"
)

const (
	DefaultAddr          = ":8080"
	DefaultMaxUploadMB   = 512
	DefaultThumbnailSize = 800
)

type Config struct {
	Meta struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"meta"`
	// Categories are the error categories a group can be labeled with
	Categories []string `yaml:"categories"`
	Language   string   `yaml:"language"`
	Server     struct {
		Addr        string `yaml:"addr"`
		MaxUploadMB int64  `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Sessions struct {
		// Dir holds one database per session. Empty keeps sessions in memory.
		Dir string `yaml:"dir"`
	} `yaml:"sessions"`
	Thumbnails struct {
		MaxSize *int `yaml:"max_size"`
	} `yaml:"thumbnails"`
}

// DefaultConfig is the configuration used when no file is given
func DefaultConfig() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadConfig reads and validates a YAML config file
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(f)
}

func ParseConfig(r io.Reader) (*Config, error) {
	var ret Config
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("while parsing config: %w", err)
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Config) applyDefaults() {
	if c.Meta.Title == "" {
		c.Meta.Title = "Postal Annotator"
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), domain.DefaultErrorCategories...)
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Thumbnails.MaxSize == nil {
		size := DefaultThumbnailSize
		c.Thumbnails.MaxSize = &size
	}
}

// Validate reports every problem in the config at once
func (c *Config) Validate() error {
	var result *multierror.Error
	seen := make(map[string]bool, len(c.Categories))
	for _, category := range c.Categories {
		category = strings.TrimSpace(category)
		if category == "" {
			result = multierror.Append(result, errors.New("categories: empty category name"))
			continue
		}
		if seen[category] {
			result = multierror.Append(result, fmt.Errorf("categories: %q is listed twice", category))
		}
		seen[category] = true
	}
	if !IsSupportedLanguage(c.Language) {
		result = multierror.Append(result, fmt.Errorf("language: %q is not supported", c.Language))
	}
	if c.Server.MaxUploadMB < 0 {
		result = multierror.Append(result, errors.New("server.max_upload_mb must not be negative"))
	}
	if c.ThumbnailSize() < 0 {
		result = multierror.Append(result, errors.New("thumbnails.max_size must not be negative"))
	}
	return result.ErrorOrNil()
}

// ThumbnailSize is the largest served image dimension, 0 meaning original size
func (c *Config) ThumbnailSize() int {
	if c.Thumbnails.MaxSize == nil {
		return DefaultThumbnailSize
	}
	return *c.Thumbnails.MaxSize
}

// MaxUploadBytes is the request body limit for uploads
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

const SampleConfig = `# postal-annotator configuration file

meta:
  title: "Postal Annotator"
  description: |
    Review the OCR output of postal package labels.

    Upload a zip with the folders images, postcode_raw, postcode_preprocessed,
    receiver_raw, receiver_preprocessed, digits and words.

# Error categories a group can be labeled with
categories:
  - Wrong receiver
  - Wrong postcode
  - Bad image quality
  - Poor preprocessing
  - Postcode digit detection error
  - Receiver word detection error

# Default interface language when the browser asks for none we have (en, fa)
language: en

server:
  addr: ":8080"
  max_upload_mb: 512

# Keep one database per reviewing session in this directory.
# Leave empty to keep annotations in memory until the session ends.
sessions:
  dir: ""

thumbnails:
  max_size: 800
`

// WriteSampleConfig writes SampleConfig to filename
func WriteSampleConfig(filename string) error {
	return os.WriteFile(filename, []byte(SampleConfig), 0644)
}
