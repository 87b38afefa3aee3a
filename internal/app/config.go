package app

import (
	"time"

	"github.com/hyperifyio/gobookexport/internal/chunk"
)

// Config holds all runtime options. Exactly one of EPUBPath, HTMLDir or
// ManifestPath selects the input.
type Config struct {
	// Input sources
	EPUBPath     string
	HTMLDir      string
	HTMLPattern  string
	ManifestPath string
	// CoverFirst moves a chapter whose filename mentions "cover" to the front
	// of a manifest book.
	CoverFirst bool

	// Output
	OutputDir  string
	Title      string
	Formats    []string
	SingleFile bool
	// Archive additionally packs the output directory into <dir>.tar.gz.
	Archive bool

	// Chunking
	ChunkSize         int
	Overlap           int
	RespectBoundaries bool

	// Tokens
	Tokenizer string
	Encoding  string
	// Model is used only to warn when a chunk would not fit its context window.
	Model   string
	Workers int

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxEntries  int

	UserAgent string
	// RespectRobots consults robots.txt before downloading remote chapters.
	RespectRobots bool

	DryRun  bool
	Verbose bool
}

// Defaults shared by flag parsing and the config file overlay.
const (
	DefaultOutputDir = "output"
	DefaultCacheDir  = ".gobookexport-cache"
	DefaultTokenizer = "tiktoken"
	DefaultUserAgent = "gobookexport/1.0 (+https://github.com/hyperifyio/gobookexport)"
	DefaultFormats   = "text,json"
)

// DefaultConfig is the bottom configuration layer. The config file, the
// environment and flags are applied on top of it, in that order.
func DefaultConfig() Config {
	d := chunk.DefaultConfig()
	return Config{
		OutputDir:         DefaultOutputDir,
		Formats:           splitList(DefaultFormats),
		ChunkSize:         d.ChunkSize,
		Overlap:           d.Overlap,
		RespectBoundaries: d.RespectBoundaries,
		Tokenizer:         DefaultTokenizer,
		CacheDir:          DefaultCacheDir,
		UserAgent:         DefaultUserAgent,
	}
}
