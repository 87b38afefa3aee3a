package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/gobookexport/internal/book"
)

// ManifestFile is the on-disk chapter list. JSON documents parse as well
// since the decoder is YAML.
type ManifestFile struct {
	book.Metadata `yaml:",inline"`
	Chapters      []ManifestChapter `yaml:"chapters"`
}

// ManifestChapter names one chapter. Exactly one of Path and URL is set;
// Path is relative to the manifest file.
type ManifestChapter struct {
	Filename string `yaml:"filename"`
	Title    string `yaml:"title"`
	Path     string `yaml:"path"`
	URL      string `yaml:"url"`
}

// Manifest loads chapters listed in a YAML or JSON manifest. Remote chapters
// are fetched concurrently with Fetcher.
type Manifest struct {
	Path    string
	Fetcher Fetcher
	// Workers caps concurrent chapter loads; values below 1 mean 4.
	Workers int
	// CoverFirst moves cover chapters to the front.
	CoverFirst bool
}

// ParseManifest decodes and checks a manifest document.
func ParseManifest(data []byte) (ManifestFile, error) {
	var mf ManifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return ManifestFile{}, fmt.Errorf("parse manifest: %w", err)
	}
	for i, ch := range mf.Chapters {
		hasPath := strings.TrimSpace(ch.Path) != ""
		hasURL := strings.TrimSpace(ch.URL) != ""
		if hasPath == hasURL {
			return ManifestFile{}, fmt.Errorf("manifest chapter %d: exactly one of path or url is required", i+1)
		}
	}
	return mf, nil
}

func (m Manifest) Load(ctx context.Context) (book.Book, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return book.Book{}, fmt.Errorf("read manifest: %w", err)
	}
	mf, err := ParseManifest(data)
	if err != nil {
		return book.Book{}, err
	}
	base := filepath.Dir(m.Path)

	chapters := make([]book.Chapter, len(mf.Chapters))
	workers := m.Workers
	if workers < 1 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range mf.Chapters {
		i, entry := i, entry
		g.Go(func() error {
			html, name, err := m.loadChapter(gctx, base, entry)
			if err != nil {
				return fmt.Errorf("chapter %d: %w", i+1, err)
			}
			chapters[i] = book.Chapter{
				Filename: name,
				Title:    chapterTitle(entry.Title, html, i),
				HTML:     html,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return book.Book{}, err
	}
	if m.CoverFirst {
		chapters = ReorderCoverFirst(chapters)
	}
	log.Debug().Str("manifest", m.Path).Int("chapters", len(chapters)).Msg("loaded chapter manifest")
	return book.Book{Metadata: mf.Metadata, Chapters: chapters}, nil
}

func (m Manifest) loadChapter(ctx context.Context, base string, entry ManifestChapter) (html string, filename string, err error) {
	filename = strings.TrimSpace(entry.Filename)
	if p := strings.TrimSpace(entry.Path); p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", "", err
		}
		if filename == "" {
			filename = filepath.Base(p)
		}
		return string(data), filename, nil
	}

	if m.Fetcher == nil {
		return "", "", errors.New("remote chapter without a fetcher")
	}
	data, _, err := m.Fetcher.Get(ctx, entry.URL)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", entry.URL, err)
	}
	if filename == "" {
		filename = urlFilename(entry.URL)
	}
	return string(data), filename, nil
}

func urlFilename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "index.html"
	}
	name := path.Base(strings.TrimRight(u.Path, "/"))
	if name == "" || name == "." || name == "/" {
		return "index.html"
	}
	return name
}
