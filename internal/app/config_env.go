package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig overlays environment variables onto cfg. A variable that
// is set and parses replaces whatever cfg holds, so it wins over the config
// file and defaults; command-line flags are applied after it. Empty or
// malformed values are ignored.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	setString(&cfg.EPUBPath, "EPUB_PATH")
	setString(&cfg.HTMLDir, "HTML_DIR")
	setString(&cfg.ManifestPath, "MANIFEST_PATH")
	setString(&cfg.OutputDir, "OUTPUT_DIR")
	setString(&cfg.Title, "BOOK_TITLE")
	setString(&cfg.Tokenizer, "TOKENIZER")
	setString(&cfg.Encoding, "TOKEN_ENCODING")
	setString(&cfg.Model, "MODEL")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.UserAgent, "USER_AGENT")
	if formats := splitList(os.Getenv("FORMATS")); len(formats) > 0 {
		cfg.Formats = formats
	}

	setInt(&cfg.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.Overlap, "CHUNK_OVERLAP")
	setInt(&cfg.Workers, "WORKERS")
	setInt(&cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES")
	if n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("CACHE_MAX_BYTES")), 10, 64); err == nil && n >= 0 {
		cfg.CacheMaxBytes = n
	}
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("CACHE_MAX_AGE"))); err == nil && d >= 0 {
		cfg.CacheMaxAge = d
	}

	setBool(&cfg.RespectBoundaries, "RESPECT_BOUNDARIES")
	setBool(&cfg.SingleFile, "SINGLE_FILE")
	setBool(&cfg.CoverFirst, "COVER_FIRST")
	setBool(&cfg.Archive, "ARCHIVE")
	setBool(&cfg.RespectRobots, "RESPECT_ROBOTS")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= 0 {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	if b, ok := envBool(key); ok {
		*dst = b
	}
}

// envBool reports the parsed value and whether key was set to something
// recognizable.
func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
