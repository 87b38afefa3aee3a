package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/gobookexport/internal/chunk"
	"github.com/hyperifyio/gobookexport/internal/export"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags and env.
type FileConfig struct {
	Input struct {
		EPUB       string `yaml:"epub" json:"epub"`
		Dir        string `yaml:"dir" json:"dir"`
		Pattern    string `yaml:"pattern" json:"pattern"`
		Manifest   string `yaml:"manifest" json:"manifest"`
		CoverFirst bool   `yaml:"coverFirst" json:"coverFirst"`
	} `yaml:"input" json:"input"`

	Output struct {
		Dir        string   `yaml:"dir" json:"dir"`
		Title      string   `yaml:"title" json:"title"`
		Formats    []string `yaml:"formats" json:"formats"`
		SingleFile bool     `yaml:"singleFile" json:"singleFile"`
		Archive    bool     `yaml:"archive" json:"archive"`
	} `yaml:"output" json:"output"`

	Chunking struct {
		Size    int `yaml:"size" json:"size"`
		Overlap int `yaml:"overlap" json:"overlap"`
		// Pointer so an explicit false is distinguishable from absent.
		RespectBoundaries *bool `yaml:"respectBoundaries" json:"respectBoundaries"`
	} `yaml:"chunking" json:"chunking"`

	Tokens struct {
		Tokenizer string `yaml:"tokenizer" json:"tokenizer"`
		Encoding  string `yaml:"encoding" json:"encoding"`
		Model     string `yaml:"model" json:"model"`
	} `yaml:"tokens" json:"tokens"`

	Workers int `yaml:"workers" json:"workers"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
	} `yaml:"cache" json:"cache"`

	UserAgent     string `yaml:"userAgent" json:"userAgent"`
	RespectRobots bool   `yaml:"respectRobots" json:"respectRobots"`
	DryRun        bool   `yaml:"dryRun" json:"dryRun"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default. Flags should already
// have been parsed; the file supplies defaults while explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	defaults := chunk.DefaultConfig()

	if cfg.EPUBPath == "" && fc.Input.EPUB != "" {
		cfg.EPUBPath = fc.Input.EPUB
	}
	if cfg.HTMLDir == "" && fc.Input.Dir != "" {
		cfg.HTMLDir = fc.Input.Dir
	}
	if cfg.HTMLPattern == "" && fc.Input.Pattern != "" {
		cfg.HTMLPattern = fc.Input.Pattern
	}
	if cfg.ManifestPath == "" && fc.Input.Manifest != "" {
		cfg.ManifestPath = fc.Input.Manifest
	}
	if !cfg.CoverFirst && fc.Input.CoverFirst {
		cfg.CoverFirst = true
	}

	if (cfg.OutputDir == "" || cfg.OutputDir == DefaultOutputDir) && fc.Output.Dir != "" {
		cfg.OutputDir = fc.Output.Dir
	}
	if cfg.Title == "" && fc.Output.Title != "" {
		cfg.Title = fc.Output.Title
	}
	if (len(cfg.Formats) == 0 || strings.Join(cfg.Formats, ",") == DefaultFormats) && len(fc.Output.Formats) > 0 {
		cfg.Formats = append([]string{}, fc.Output.Formats...)
	}
	if !cfg.SingleFile && fc.Output.SingleFile {
		cfg.SingleFile = true
	}
	if !cfg.Archive && fc.Output.Archive {
		cfg.Archive = true
	}

	if (cfg.ChunkSize == 0 || cfg.ChunkSize == defaults.ChunkSize) && fc.Chunking.Size > 0 {
		cfg.ChunkSize = fc.Chunking.Size
	}
	if (cfg.Overlap == 0 || cfg.Overlap == defaults.Overlap) && fc.Chunking.Overlap > 0 {
		cfg.Overlap = fc.Chunking.Overlap
	}
	if fc.Chunking.RespectBoundaries != nil {
		cfg.RespectBoundaries = *fc.Chunking.RespectBoundaries
	}

	if (cfg.Tokenizer == "" || cfg.Tokenizer == DefaultTokenizer) && fc.Tokens.Tokenizer != "" {
		cfg.Tokenizer = fc.Tokens.Tokenizer
	}
	if cfg.Encoding == "" && fc.Tokens.Encoding != "" {
		cfg.Encoding = fc.Tokens.Encoding
	}
	if cfg.Model == "" && fc.Tokens.Model != "" {
		cfg.Model = fc.Tokens.Model
	}
	if cfg.Workers == 0 && fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 {
		cfg.CacheMaxEntries = fc.Cache.MaxEntries
	}

	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if !cfg.RespectRobots && fc.RespectRobots {
		cfg.RespectRobots = true
	}
	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks the settings the exporter cannot run without. The
// chunker itself accepts any sizes; rejecting nonsense is done here.
func ValidateConfig(cfg Config) error {
	sources := 0
	for _, s := range []string{cfg.EPUBPath, cfg.HTMLDir, cfg.ManifestPath} {
		if strings.TrimSpace(s) != "" {
			sources++
		}
	}
	if sources == 0 {
		return ErrNoSource
	}
	if sources > 1 {
		return errors.New("config: choose exactly one of epub, dir or manifest")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output dir is required")
	}
	if cfg.ChunkSize <= 0 {
		return errors.New("config: chunk size must be positive")
	}
	if cfg.Overlap < 0 {
		return errors.New("config: overlap must not be negative")
	}
	if cfg.Workers < 0 || cfg.CacheMaxBytes < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if _, err := export.NormalizeFormats(cfg.Formats); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
