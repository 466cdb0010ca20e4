package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/grid"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/storage/s3store"
	"github.com/menta2k/image-carousel/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Layout  LayoutConfig  `yaml:"layout" json:"layout"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Subject SubjectConfig `yaml:"subject" json:"subject"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// LayoutConfig holds the default grid layout
type LayoutConfig struct {
	SplitCount   int     `yaml:"split_count" json:"split_count"`
	AspectRatio  string  `yaml:"aspect_ratio" json:"aspect_ratio"`
	ScalePercent float64 `yaml:"scale_percent" json:"scale_percent"`
	// Alignment is top, center, bottom or subject
	Alignment string `yaml:"alignment" json:"alignment"`
	// HAlign is left, center or right
	HAlign string `yaml:"halign" json:"halign"`
}

// OutputConfig holds configuration for tile encoding
type OutputConfig struct {
	Format     string `yaml:"format" json:"format"`
	Quality    int    `yaml:"quality" json:"quality"`
	Lossless   bool   `yaml:"lossless" json:"lossless"`
	Collection string `yaml:"collection" json:"collection"`
	// CopyToCollection stores a copy of the seed tile in a new collection
	CopyToCollection bool `yaml:"copy_to_collection" json:"copy_to_collection"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend string         `yaml:"backend" json:"backend"`
	Local   LocalConfig    `yaml:"local" json:"local"`
	S3      s3store.Config `yaml:"s3" json:"s3"`
}

// LocalConfig configures the filesystem store
type LocalConfig struct {
	Root string `yaml:"root" json:"root"`
}

// SubjectConfig configures subject-aware alignment
type SubjectConfig struct {
	// Locator is saliency, ollama or llamacpp
	Locator string `yaml:"locator" json:"locator"`
	URL     string `yaml:"url" json:"url"`
	Model   string `yaml:"model" json:"model"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb" json:"body_limit_mb"`
}

// Storage backends
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Subject locators
const (
	LocatorSaliency = "saliency"
	LocatorOllama   = "ollama"
	LocatorLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Layout: LayoutConfig{
			SplitCount:   3,
			AspectRatio:  "4:5",
			ScalePercent: grid.DefaultScale,
			Alignment:    "top",
			HAlign:       "center",
		},
		Output: OutputConfig{
			Format:     string(types.JPEG),
			Quality:    codec.DefaultQuality,
			Collection: storage.DefaultCollection,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Local:   LocalConfig{Root: "./carousel"},
			S3:      s3store.Config{Region: "us-east-1", Bucket: "carousel"},
		},
		Subject: SubjectConfig{
			Locator: LocatorSaliency,
			URL:     "http://localhost:11434",
			Timeout: "5m",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 50,
		},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a YAML or JSON file, chosen by
// extension. Missing keys keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as YAML or JSON, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := grid.ValidateSplitCount(c.Layout.SplitCount); err != nil {
		return fmt.Errorf("layout.split_count: %w", err)
	}

	if _, err := grid.LookupAspectRatio(c.Layout.AspectRatio); err != nil {
		return fmt.Errorf("layout.aspect_ratio: %w", err)
	}

	if c.Layout.ScalePercent <= 0 || c.Layout.ScalePercent > 1 {
		return fmt.Errorf("layout.scale_percent must be in (0,1]")
	}

	if c.Layout.Alignment != "subject" {
		if _, err := grid.ParseAlignment(c.Layout.Alignment); err != nil {
			return fmt.Errorf("layout.alignment: %w", err)
		}
	}

	if _, err := grid.ParseAlignment(c.Layout.HAlign); err != nil {
		return fmt.Errorf("layout.halign: %w", err)
	}

	if _, err := types.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("storage.local.root cannot be empty")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of local, s3, memory")
	}

	switch c.Subject.Locator {
	case LocatorSaliency, LocatorOllama, LocatorLlamaCpp:
	default:
		return fmt.Errorf("subject.locator must be one of saliency, ollama, llamacpp")
	}

	if _, err := c.Subject.TimeoutDuration(); err != nil {
		return fmt.Errorf("subject.timeout: %w", err)
	}

	return nil
}

// Parameters converts the layout section to resolver parameters. Offsets are
// left at zero; alignment is applied per image.
func (l LayoutConfig) Parameters() (grid.LayoutParameters, error) {
	ratio, err := grid.LookupAspectRatio(l.AspectRatio)
	if err != nil {
		return grid.LayoutParameters{}, err
	}
	p := grid.DefaultParameters(l.SplitCount, ratio)
	p.ScalePercent = l.ScalePercent
	return p, nil
}

// Options converts the output section to codec options
func (o OutputConfig) Options() (codec.Options, error) {
	format, err := types.ParseFormat(o.Format)
	if err != nil {
		return codec.Options{}, err
	}
	return codec.Options{Format: format, Quality: o.Quality, Lossless: o.Lossless}, nil
}

// TimeoutDuration parses the subject timeout, empty means no explicit timeout
func (s SubjectConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./carousel.yaml"
	}
	return filepath.Join(home, ".config", "image-carousel", "config.yaml")
}
