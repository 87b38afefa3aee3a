package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobookexport/internal/book"
)

var htmlExtensions = map[string]bool{".html": true, ".xhtml": true, ".htm": true}

// Dir reads every HTML file directly inside Path, sorted by file name.
// Files without an extension are included when their content sniffs as HTML.
// When Pattern is set it selects files instead, relative to Path, with
// doublestar globbing ("**/*.xhtml").
type Dir struct {
	Path    string
	Title   string
	Pattern string
}

func (d Dir) files() ([]string, error) {
	if p := strings.TrimSpace(d.Pattern); p != "" {
		matches, err := doublestar.FilepathGlob(filepath.Clean(filepath.Join(d.Path, p)))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		var names []string
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(d.Path, m)
			if err != nil {
				return nil, err
			}
			names = append(names, rel)
		}
		sort.Strings(names)
		return names, nil
	}

	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == "" {
			if !sniffsHTML(filepath.Join(d.Path, e.Name())) {
				continue
			}
		} else if !htmlExtensions[ext] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d Dir) Load(ctx context.Context) (book.Book, error) {
	names, err := d.files()
	if err != nil {
		return book.Book{}, err
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = filepath.Base(filepath.Clean(d.Path))
	}
	b := book.Book{Metadata: book.Metadata{Title: title}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return book.Book{}, err
		}
		data, err := os.ReadFile(filepath.Join(d.Path, name))
		if err != nil {
			return book.Book{}, fmt.Errorf("read chapter %s: %w", name, err)
		}
		html := string(data)
		b.Chapters = append(b.Chapters, book.Chapter{
			Filename: filepath.ToSlash(name),
			Title:    chapterTitle("", html, len(b.Chapters)),
			HTML:     html,
		})
	}
	log.Debug().Str("dir", d.Path).Int("chapters", len(b.Chapters)).Msg("loaded html directory")
	return b, nil
}

func sniffsHTML(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mt.Is("text/html") || mt.Is("application/xhtml+xml")
}
