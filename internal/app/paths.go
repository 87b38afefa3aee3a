package app

import (
	"path/filepath"
	"strings"

	"github.com/hyperifyio/gobookexport/internal/export"
)

// bookOutputDir returns <OutputDir>/<slug of title>. A title with nothing
// sluggable falls back to "book" so runs never write into OutputDir itself.
func bookOutputDir(root string, title string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		root = DefaultOutputDir
	}
	slug := export.Slugify(title)
	if slug == "" {
		slug = "book"
	}
	return filepath.Join(root, slug)
}

// sourceLabel names the configured input for logs and the run manifest.
func sourceLabel(cfg Config) string {
	switch {
	case cfg.EPUBPath != "":
		return "epub:" + cfg.EPUBPath
	case cfg.HTMLDir != "":
		return "dir:" + cfg.HTMLDir
	case cfg.ManifestPath != "":
		return "manifest:" + cfg.ManifestPath
	}
	return ""
}
