package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobookexport/internal/budget"
	"github.com/hyperifyio/gobookexport/internal/cache"
	"github.com/hyperifyio/gobookexport/internal/chunk"
	"github.com/hyperifyio/gobookexport/internal/export"
	"github.com/hyperifyio/gobookexport/internal/extract"
	"github.com/hyperifyio/gobookexport/internal/fetch"
	"github.com/hyperifyio/gobookexport/internal/robots"
	"github.com/hyperifyio/gobookexport/internal/source"
)

type App struct {
	cfg       Config
	oracle    budget.Oracle
	httpCache *cache.HTTPCache
	out       io.Writer

	outDir  string
	written []string
}

// ErrNoSource is returned when no input is configured.
var ErrNoSource = errors.New("no input source configured (epub, dir or manifest)")

// ErrNoChapters is returned when the source yields zero chapters. The CLI
// maps it to exit code 2.
var ErrNoChapters = errors.New("source produced no chapters")

func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.ChunkSize == 0 && cfg.Overlap == 0 {
		d := chunk.DefaultConfig()
		cfg.ChunkSize, cfg.Overlap = d.ChunkSize, d.Overlap
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = splitList(DefaultFormats)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, out: os.Stdout}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			// Ignore errors to avoid failing startup
			if n, err := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err == nil && n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxEntries > 0 {
			if n, err := cache.EnforceHTTPCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries); err == nil && n > 0 {
				log.Debug().Int("evicted", n).Msg("enforced cache limits")
			}
		}
		a.httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	a.oracle = budget.NewOracle(cfg.Tokenizer, cfg.Encoding)
	if a.oracle != nil && !budget.Available(a.oracle) {
		ev := log.Warn()
		if t, ok := a.oracle.(*budget.Tiktoken); ok {
			ev = ev.Err(t.Err())
		}
		ev.Msg("tokenizer unavailable; token counts are estimates")
	}

	if cfg.Overlap >= cfg.ChunkSize {
		log.Warn().Int("chunk_size", cfg.ChunkSize).Int("overlap", cfg.Overlap).Msg("overlap is not smaller than chunk size; chunks will advance slowly")
	}
	if cfg.Model != "" && !budget.ChunkFitsModel(cfg.Model, cfg.ChunkSize) {
		log.Warn().Str("model", cfg.Model).Int("chunk_size", cfg.ChunkSize).Int("context", budget.ModelContextTokens(cfg.Model)).Msg("chunk size leaves no headroom in model context")
	}
	return a, nil
}

func (a *App) Close() {
	// nothing yet
}

// SetOutput redirects the dry-run summary, which goes to stdout by default.
func (a *App) SetOutput(w io.Writer) { a.out = w }

// OutputDir is the directory the last Run wrote into.
func (a *App) OutputDir() string { return a.outDir }

// Written lists files of the last Run relative to OutputDir.
func (a *App) Written() []string { return append([]string(nil), a.written...) }

func (a *App) provider() (source.Provider, error) {
	switch {
	case a.cfg.EPUBPath != "":
		return source.EPUB{Path: a.cfg.EPUBPath, Title: a.cfg.Title}, nil
	case a.cfg.HTMLDir != "":
		return source.Dir{Path: a.cfg.HTMLDir, Title: a.cfg.Title, Pattern: a.cfg.HTMLPattern}, nil
	case a.cfg.ManifestPath != "":
		ua := a.cfg.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		workers := a.cfg.Workers
		if workers < 1 {
			workers = 4
		}
		httpClient := newChapterHTTPClient(workers)
		var fetcher source.Fetcher = &fetch.Client{
			HTTPClient:        httpClient,
			UserAgent:         ua,
			MaxAttempts:       3,
			PerRequestTimeout: 30 * time.Second,
			Cache:             a.httpCache,
			RedirectMaxHops:   5,
			MaxConcurrent:     workers,
			BypassCache:       a.cfg.CacheClear,
		}
		if a.cfg.RespectRobots {
			fetcher = &robots.Gate{
				Next:      fetcher,
				Manager:   &robots.Manager{HTTPClient: httpClient, Cache: a.httpCache, UserAgent: ua},
				UserAgent: ua,
			}
		}
		return source.Manifest{
			Path:       a.cfg.ManifestPath,
			Fetcher:    fetcher,
			Workers:    workers,
			CoverFirst: a.cfg.CoverFirst,
		}, nil
	}
	return nil, ErrNoSource
}

func (a *App) Run(ctx context.Context) error {
	started := time.Now()
	p, err := a.provider()
	if err != nil {
		return err
	}
	b, err := p.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", sourceLabel(a.cfg), err)
	}
	if a.cfg.Title != "" {
		b.Metadata.Title = a.cfg.Title
	}
	if len(b.Chapters) == 0 {
		log.Warn().Str("source", sourceLabel(a.cfg)).Msg("no chapters found")
		return ErrNoChapters
	}
	log.Info().Str("title", b.Metadata.DisplayTitle()).Int("chapters", len(b.Chapters)).Msg("loaded book")

	ex := extract.TokenExtractor{}
	doc := export.Prepare(b, ex, a.oracle)
	chunker := &chunk.Chunker{Oracle: a.oracle, Extractor: ex, Workers: a.cfg.Workers}
	chunkCfg := chunk.Config{ChunkSize: a.cfg.ChunkSize, Overlap: a.cfg.Overlap, RespectBoundaries: a.cfg.RespectBoundaries}
	a.outDir = bookOutputDir(a.cfg.OutputDir, b.Metadata.DisplayTitle())

	if a.cfg.DryRun {
		return a.dryRun(doc, chunker, chunkCfg)
	}

	exporters, err := export.Build(a.cfg.Formats, export.Options{
		SingleFile: a.cfg.SingleFile,
		Chunker:    chunker,
		Chunking:   chunkCfg,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	a.written = nil
	for _, e := range exporters {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err := e.Export(ctx, doc, a.outDir)
		a.written = append(a.written, files...)
		if err != nil {
			return fmt.Errorf("export %s: %w", e.Name(), err)
		}
		log.Info().Str("format", e.Name()).Int("files", len(files)).Msg("exported")
	}

	formats, _ := export.NormalizeFormats(a.cfg.Formats)
	run := export.RunInfo{
		Title:             b.Metadata.DisplayTitle(),
		Source:            sourceLabel(a.cfg),
		Formats:           formats,
		Chapters:          len(doc.Chapters),
		Tokenizer:         tokenizerLabel(a.oracle),
		TokensExact:       doc.TokensExact,
		ChunkSize:         chunkCfg.ChunkSize,
		Overlap:           chunkCfg.Overlap,
		RespectBoundaries: chunkCfg.RespectBoundaries,
		Version:           VersionString(),
		GeneratedAt:       time.Now().UTC(),
	}
	man, err := export.BuildManifest(a.outDir, run, a.written)
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	names, err := export.WriteManifest(a.outDir, man)
	a.written = append(a.written, names...)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if a.cfg.Archive {
		archivePath := strings.TrimRight(a.outDir, string(os.PathSeparator)) + ".tar.gz"
		if err := export.Archive(a.outDir, archivePath); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		log.Info().Str("archive", archivePath).Msg("wrote archive")
	}

	log.Info().Str("dir", a.outDir).Int("files", len(a.written)).Dur("elapsed", time.Since(started)).Msg("export complete")
	return nil
}

// dryRun reports what a run would produce without writing any files.
func (a *App) dryRun(doc *export.Document, chunker *chunk.Chunker, cfg chunk.Config) error {
	chunks := chunker.ChunkChapters(doc.ChapterTexts(), cfg)
	var sb strings.Builder
	fmt.Fprintf(&sb, "# gobookexport (dry run)\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", doc.Metadata.DisplayTitle())
	if len(doc.Metadata.Authors) > 0 {
		fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(doc.Metadata.Authors, ", "))
	}
	fmt.Fprintf(&sb, "Source: %s\n", sourceLabel(a.cfg))
	fmt.Fprintf(&sb, "Output: %s\n", a.outDir)
	fmt.Fprintf(&sb, "Formats: %s\n\n", strings.Join(a.cfg.Formats, ", "))
	fmt.Fprintf(&sb, "Chapters:\n")
	for _, c := range doc.Chapters {
		tokens := "-"
		if c.Tokens != nil {
			tokens = fmt.Sprintf("%d", *c.Tokens)
		}
		fmt.Fprintf(&sb, "%d. %s (%s) words=%d tokens=%s\n", c.Index+1, c.Title, c.Filename, c.Words, tokens)
	}
	fmt.Fprintf(&sb, "\nTokenizer: %s (exact: %t)\n", tokenizerLabel(a.oracle), doc.TokensExact)
	fmt.Fprintf(&sb, "Total words: %d\n", doc.TotalWords())
	if t := doc.TotalTokens(); t != nil {
		fmt.Fprintf(&sb, "Total tokens: %d\n", *t)
	}
	fmt.Fprintf(&sb, "Chunks: %d (size %d, overlap %d, boundaries %t)\n", len(chunks), cfg.ChunkSize, cfg.Overlap, cfg.RespectBoundaries)
	if a.cfg.ManifestPath != "" && a.httpCache != nil {
		if st, err := cache.DirStats(a.httpCache.Dir); err == nil {
			fmt.Fprintf(&sb, "Cache: %d entries, %d bytes in %s\n", st.Entries, st.Bytes, a.httpCache.Dir)
		}
	}
	if _, err := io.WriteString(a.out, sb.String()); err != nil {
		return fmt.Errorf("write dry-run summary: %w", err)
	}
	log.Info().Int("chapters", len(doc.Chapters)).Int("chunks", len(chunks)).Msg("dry run complete")
	return nil
}

func tokenizerLabel(o budget.Oracle) string {
	switch t := o.(type) {
	case nil:
		return "none"
	case *budget.Tiktoken:
		if t.Err() != nil {
			return "heuristic"
		}
		return "tiktoken:" + t.Name()
	case budget.WordHeuristic:
		return "heuristic"
	}
	return fmt.Sprintf("%T", o)
}

