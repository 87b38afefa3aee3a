// Package export writes an extracted book in the supported output formats.
//
// A Document is prepared once per run: every chapter is extracted and counted
// a single time and then handed to each Exporter. Exporters only write files;
// they never mutate the Document.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/gobookexport/internal/book"
	"github.com/hyperifyio/gobookexport/internal/budget"
	"github.com/hyperifyio/gobookexport/internal/chunk"
	"github.com/hyperifyio/gobookexport/internal/extract"
)

// Chapter is a source chapter with its extracted content and counts.
type Chapter struct {
	book.Chapter
	// Index is zero-based reading order.
	Index   int
	Content extract.ExtractedContent
	Words   int
	// Tokens is nil when no token oracle was configured.
	Tokens *int
}

// Document is the prepared input shared by all exporters.
type Document struct {
	Metadata book.Metadata
	Chapters []Chapter
	// TokensExact reports whether every token count came from an exact oracle.
	TokensExact bool
}

// Prepare extracts and counts every chapter. A nil oracle leaves token
// counts unset; a nil extractor uses extract.TokenExtractor.
func Prepare(b book.Book, ex extract.Extractor, o budget.Oracle) *Document {
	if ex == nil {
		ex = extract.TokenExtractor{}
	}
	doc := &Document{
		Metadata:    b.Metadata,
		Chapters:    make([]Chapter, 0, len(b.Chapters)),
		TokensExact: o != nil,
	}
	for i, ch := range b.Chapters {
		content := ex.Extract(ch.HTML)
		c := Chapter{
			Chapter: ch,
			Index:   i,
			Content: content,
			Words:   len(strings.Fields(content.Text)),
		}
		if o != nil {
			n, exact := budget.CountOrEstimate(o, content.Text)
			c.Tokens = &n
			if !exact {
				doc.TokensExact = false
			}
		}
		doc.Chapters = append(doc.Chapters, c)
	}
	return doc
}

// ChapterTexts returns the extracted chapter texts for chunking, so chunking
// does not extract the HTML a second time.
func (d *Document) ChapterTexts() []chunk.ChapterText {
	out := make([]chunk.ChapterText, len(d.Chapters))
	for i, c := range d.Chapters {
		out[i] = chunk.ChapterText{Title: c.Title, Filename: c.Filename, Text: c.Content.Text}
	}
	return out
}

// TotalWords sums the chapter word counts.
func (d *Document) TotalWords() int {
	total := 0
	for _, c := range d.Chapters {
		total += c.Words
	}
	return total
}

// TotalTokens sums chapter token counts; nil when none were counted.
func (d *Document) TotalTokens() *int {
	var total *int
	for _, c := range d.Chapters {
		if c.Tokens == nil {
			continue
		}
		if total == nil {
			total = new(int)
		}
		*total += *c.Tokens
	}
	return total
}

// Exporter writes one output format under dir and returns the files it
// wrote, relative to dir.
type Exporter interface {
	Name() string
	Export(ctx context.Context, doc *Document, dir string) ([]string, error)
}

// writeFile writes data to dir/rel, creating parent directories.
func writeFile(dir string, rel string, data []byte) error {
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
