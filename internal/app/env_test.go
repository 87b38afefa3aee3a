package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// LoadEnvFiles reads KEY=VALUE pairs and populates the environment.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta gamma\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want quoted value unwrapped", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestLoadEnvFiles_KeepsProcessEnvAndSkipsMissing(t *testing.T) {
	t.Setenv("KEEP", "from-process")
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("KEEP=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("KEEP"); got != "from-process" {
		t.Fatalf("KEEP=%q, process env should win", got)
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	t.Setenv("HTML_DIR", "/books/html")
	t.Setenv("CACHE_DIR", "/tmp/gobookexport-cache")
	t.Setenv("FORMATS", "text, chunks,,pdf")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("CACHE_MAX_AGE", "48h")
	t.Setenv("CACHE_MAX_BYTES", "1048576")
	t.Setenv("DRY_RUN", "yes")

	var cfg Config
	ApplyEnvToConfig(&cfg)
	if cfg.HTMLDir != "/books/html" {
		t.Fatalf("HTMLDir=%q", cfg.HTMLDir)
	}
	if cfg.CacheDir != "/tmp/gobookexport-cache" {
		t.Fatalf("CacheDir=%q", cfg.CacheDir)
	}
	if len(cfg.Formats) != 3 || cfg.Formats[1] != "chunks" {
		t.Fatalf("Formats=%v", cfg.Formats)
	}
	if cfg.ChunkSize != 1000 || cfg.Overlap != 50 {
		t.Fatalf("chunking = %d/%d, want 1000/50", cfg.ChunkSize, cfg.Overlap)
	}
	if cfg.CacheMaxAge != 48*time.Hour || cfg.CacheMaxBytes != 1<<20 {
		t.Fatalf("cache limits = %v/%d", cfg.CacheMaxAge, cfg.CacheMaxBytes)
	}
	if !cfg.DryRun {
		t.Fatalf("DRY_RUN=yes should enable dry run")
	}
}

func TestApplyEnvToConfig_ReplacesLowerLayers(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/from/env")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("CHUNK_OVERLAP", "0")
	t.Setenv("RESPECT_BOUNDARIES", "off")
	t.Setenv("USER_AGENT", "reader/2")
	t.Setenv("TOKENIZER", "")
	cfg := DefaultConfig()
	ApplyEnvToConfig(&cfg)
	if cfg.OutputDir != "/from/env" || cfg.ChunkSize != 1000 || cfg.Overlap != 0 {
		t.Fatalf("env did not replace defaults: %+v", cfg)
	}
	if cfg.RespectBoundaries {
		t.Fatalf("RESPECT_BOUNDARIES=off should switch boundaries off")
	}
	if cfg.UserAgent != "reader/2" {
		t.Fatalf("UserAgent=%q", cfg.UserAgent)
	}
	if cfg.Tokenizer != DefaultTokenizer {
		t.Fatalf("empty TOKENIZER must keep the lower layer, got %q", cfg.Tokenizer)
	}
}

func TestApplyEnvToConfig_IgnoresMalformed(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")
	t.Setenv("CACHE_MAX_AGE", "soon")
	t.Setenv("DRY_RUN", "maybe")
	cfg := Config{ChunkSize: 2000, CacheMaxAge: time.Hour, DryRun: true}
	ApplyEnvToConfig(&cfg)
	if cfg.ChunkSize != 2000 || cfg.CacheMaxAge != time.Hour || !cfg.DryRun {
		t.Fatalf("malformed values applied: %+v", cfg)
	}
}
