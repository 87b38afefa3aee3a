package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperifyio/gobookexport/internal/chunk"
)

// Format names accepted by Build.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatJSONL    = "jsonl"
	FormatChunks   = "chunks"
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
)

var knownFormats = map[string]bool{
	FormatText: true, FormatJSON: true, FormatJSONL: true,
	FormatChunks: true, FormatMarkdown: true, FormatPDF: true,
}

// KnownFormats lists the accepted format names in sorted order.
func KnownFormats() []string {
	out := make([]string, 0, len(knownFormats))
	for f := range knownFormats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// NormalizeFormats lowercases, trims and de-duplicates names, keeping first
// occurrence order. Unknown names are an error.
func NormalizeFormats(formats []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case "":
			continue
		case "txt", "plaintext":
			f = FormatText
		case "md":
			f = FormatMarkdown
		}
		if !knownFormats[f] {
			return nil, fmt.Errorf("unknown format %q (known: %s)", f, strings.Join(KnownFormats(), ", "))
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Options carries the settings exporters need.
type Options struct {
	SingleFile bool
	Chunker    *chunk.Chunker
	Chunking   chunk.Config
}

// Build returns one exporter per requested format. "jsonl" implies the JSON
// exporter writing both files.
func Build(formats []string, opts Options) ([]Exporter, error) {
	names, err := NormalizeFormats(formats)
	if err != nil {
		return nil, err
	}
	wantJSONL := false
	for _, n := range names {
		if n == FormatJSONL {
			wantJSONL = true
		}
	}
	var out []Exporter
	jsonAdded := false
	for _, n := range names {
		switch n {
		case FormatText:
			out = append(out, PlainText{SingleFile: opts.SingleFile})
		case FormatJSON, FormatJSONL:
			if !jsonAdded {
				out = append(out, JSON{IncludeJSONL: wantJSONL})
				jsonAdded = true
			}
		case FormatChunks:
			out = append(out, Chunks{Chunker: opts.Chunker, Config: opts.Chunking})
		case FormatMarkdown:
			out = append(out, Markdown{})
		case FormatPDF:
			out = append(out, PDF{})
		}
	}
	return out, nil
}
