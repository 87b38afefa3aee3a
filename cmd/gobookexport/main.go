package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobookexport/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("dotenv load failed")
	}

	cfg, showVersion, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("configuration failed")
		os.Exit(1)
	}
	if showVersion {
		fmt.Println(app.VersionString())
		return
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(exitCode(run(ctx, cfg)))
}

// loadConfig layers defaults, the config file, the environment and the
// command line, each overriding the one before. The command line is read
// twice: once to find -config, then again with the lower layers as flag
// defaults so only flags actually given replace them.
func loadConfig(fs *flag.FlagSet, args []string) (app.Config, bool, error) {
	first := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	first.SetOutput(io.Discard)
	_, configPath, showVersion := parseFlags(first, args, app.DefaultConfig())

	base := app.DefaultConfig()
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, false, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&base, fc)
	}
	app.ApplyEnvToConfig(&base)

	cfg, _, _ := parseFlags(fs, args, base)
	return cfg, showVersion, nil
}

// parseFlags reads args into a copy of base. Every flag defaults to the
// value base already holds.
func parseFlags(fs *flag.FlagSet, args []string, base app.Config) (app.Config, string, bool) {
	var (
		cfg         = base
		formats     string
		configPath  string
		showVersion bool
	)

	fs.StringVar(&configPath, "config", os.Getenv("GOBOOKEXPORT_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&cfg.EPUBPath, "epub", base.EPUBPath, "Path to an EPUB file")
	fs.StringVar(&cfg.HTMLDir, "dir", base.HTMLDir, "Directory of .html/.xhtml/.htm chapter files")
	fs.StringVar(&cfg.HTMLPattern, "dir.pattern", base.HTMLPattern, "Glob (supports **) selecting chapter files under -dir")
	fs.StringVar(&cfg.ManifestPath, "manifest", base.ManifestPath, "YAML/JSON chapter manifest listing local paths or URLs")
	fs.BoolVar(&cfg.CoverFirst, "cover-first", base.CoverFirst, "Move cover chapters to the front of a manifest book")
	fs.StringVar(&cfg.OutputDir, "out", base.OutputDir, "Output root; files go to <out>/<slug of title>")
	fs.StringVar(&cfg.Title, "title", base.Title, "Override the book title")
	fs.StringVar(&formats, "formats", strings.Join(base.Formats, ","), "Comma-separated formats: text,json,jsonl,chunks,markdown,pdf")
	fs.BoolVar(&cfg.SingleFile, "single-file", base.SingleFile, "Write plain text as one file instead of one per chapter")
	fs.BoolVar(&cfg.Archive, "archive", base.Archive, "Also pack the output directory into a .tar.gz")
	fs.IntVar(&cfg.ChunkSize, "chunk.size", base.ChunkSize, "Target tokens per chunk")
	fs.IntVar(&cfg.Overlap, "chunk.overlap", base.Overlap, "Target tokens shared by consecutive chunks")
	fs.BoolVar(&cfg.RespectBoundaries, "chunk.boundaries", base.RespectBoundaries, "Prefer paragraph, sentence or word breaks")
	fs.StringVar(&cfg.Tokenizer, "tokenizer", base.Tokenizer, "Token counter: tiktoken, heuristic or none")
	fs.StringVar(&cfg.Encoding, "encoding", base.Encoding, "Tiktoken encoding or model name (default cl100k_base)")
	fs.StringVar(&cfg.Model, "model", base.Model, "Model whose context window chunks should fit (warning only)")
	fs.IntVar(&cfg.Workers, "workers", base.Workers, "Parallel chapter workers for chunking and fetching")
	fs.StringVar(&cfg.CacheDir, "cache.dir", base.CacheDir, "HTTP cache directory for fetched chapters")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", base.CacheMaxAge, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", base.CacheClear, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", base.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&cfg.CacheMaxBytes, "cache.maxBytes", base.CacheMaxBytes, "Evict least recently used cache entries above this size; 0 disables")
	fs.IntVar(&cfg.CacheMaxEntries, "cache.maxEntries", base.CacheMaxEntries, "Evict least recently used cache entries above this count; 0 disables")
	fs.StringVar(&cfg.UserAgent, "ua", base.UserAgent, "User-Agent for chapter downloads")
	fs.BoolVar(&cfg.RespectRobots, "robots", base.RespectRobots, "Check robots.txt before downloading remote chapters")
	fs.BoolVar(&cfg.DryRun, "dry-run", base.DryRun, "Load and summarize the book without writing files")
	fs.BoolVar(&cfg.Verbose, "v", base.Verbose, "Verbose logging")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(args)

	cfg.Formats = splitFormats(formats)
	return cfg, configPath, showVersion
}

func splitFormats(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}

// exitCode maps run errors to the process exit status: 2 when the source had
// no chapters, 1 for any other failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	log.Error().Err(err).Msg("run failed")
	if errors.Is(err, app.ErrNoChapters) {
		return 2
	}
	return 1
}
