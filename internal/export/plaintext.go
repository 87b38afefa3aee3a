package export

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hyperifyio/gobookexport/internal/book"
)

// PlainText writes extracted text with a small metadata header. With
// SingleFile every chapter goes into <SafeTitle>.txt; otherwise each chapter
// gets PlainText/NNN_<stem>.txt and PlainText/README.txt indexes them.
type PlainText struct {
	SingleFile bool
}

func (PlainText) Name() string { return "text" }

func (p PlainText) Export(ctx context.Context, doc *Document, dir string) ([]string, error) {
	if p.SingleFile {
		return p.single(doc, dir)
	}
	return p.perChapter(ctx, doc, dir)
}

func (PlainText) single(doc *Document, dir string) ([]string, error) {
	var parts []string
	if h := metadataHeader(doc.Metadata); h != "" {
		parts = append(parts, h)
	}
	for _, c := range doc.Chapters {
		parts = append(parts, formatChapter(c.Index+1, c.Title, c.Content.Text))
	}
	name := SafeTitle(doc.Metadata.Title) + ".txt"
	if err := writeFile(dir, name, []byte(strings.Join(parts, "\n\n"))); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (PlainText) perChapter(ctx context.Context, doc *Document, dir string) ([]string, error) {
	const sub = "PlainText"
	var written []string
	readme := []string{}
	if h := metadataHeader(doc.Metadata); h != "" {
		readme = append(readme, h)
	}
	readme = append(readme, "## Chapters\n")
	for _, c := range doc.Chapters {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		name := ChapterFilename(c.Filename, c.Index+1, ".txt")
		rel := path.Join(sub, name)
		if err := writeFile(dir, rel, []byte(formatChapter(c.Index+1, c.Title, c.Content.Text))); err != nil {
			return written, err
		}
		written = append(written, rel)
		readme = append(readme, fmt.Sprintf("- [%s](%s)", c.Title, name))
	}
	rel := path.Join(sub, "README.txt")
	if err := writeFile(dir, rel, []byte(strings.Join(readme, "\n"))); err != nil {
		return written, err
	}
	return append(written, rel), nil
}

// metadataHeader renders the Title/Authors/ISBN/Publisher lines followed by a
// "---" separator, or "" when the book has none of them.
func metadataHeader(m book.Metadata) string {
	var lines []string
	if t := strings.TrimSpace(m.Title); t != "" {
		lines = append(lines, "Title: "+t)
	}
	if len(m.Authors) > 0 {
		lines = append(lines, "Authors: "+strings.Join(m.Authors, ", "))
	}
	if isbn := strings.TrimSpace(m.ISBN); isbn != "" {
		lines = append(lines, "ISBN: "+isbn)
	}
	if len(m.Publishers) > 0 {
		lines = append(lines, "Publisher: "+strings.Join(m.Publishers, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	lines = append(lines, "\n---")
	return strings.Join(lines, "\n")
}

func formatChapter(index int, title string, text string) string {
	return fmt.Sprintf("## Chapter %d: %s\n\n%s", index, title, text)
}
