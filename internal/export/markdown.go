package export

import (
	"context"
	"path"
	"regexp"
	"strings"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Markdown writes Markdown/<stem>.md per chapter and a Markdown/README.md
// index. Extracted text already carries fenced code and "- " list items, so
// it is Markdown as is; a "# Title" heading is prepended when the chapter
// does not start with a heading.
type Markdown struct{}

func (Markdown) Name() string { return "markdown" }

func (Markdown) Export(ctx context.Context, doc *Document, dir string) ([]string, error) {
	const sub = "Markdown"
	m := doc.Metadata
	var readme strings.Builder
	readme.WriteString("# " + m.DisplayTitle() + "\n\n")
	readme.WriteString("**Authors:** " + strings.Join(m.Authors, ", ") + "\n\n")
	readme.WriteString("**Publishers:** " + strings.Join(m.Publishers, ", ") + "\n\n")
	readme.WriteString("## Chapters\n\n")

	var written []string
	seen := map[string]int{}
	for _, c := range doc.Chapters {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		name := FileStem(c.Filename) + ".md"
		// Chapters from different directories may share a stem.
		if n := seen[name]; n > 0 {
			name = ChapterFilename(c.Filename, c.Index+1, ".md")
		}
		seen[name]++
		rel := path.Join(sub, name)
		if err := writeFile(dir, rel, []byte(chapterMarkdown(c.Title, c.Content.Text))); err != nil {
			return written, err
		}
		written = append(written, rel)
		readme.WriteString("- [" + c.Title + "](" + name + ")\n")
	}
	rel := path.Join(sub, "README.md")
	if err := writeFile(dir, rel, []byte(readme.String())); err != nil {
		return written, err
	}
	return append(written, rel), nil
}

func chapterMarkdown(title string, text string) string {
	md := text
	if t := strings.TrimSpace(title); t != "" && !strings.HasPrefix(md, "#") {
		md = "# " + t + "\n\n" + md
	}
	md = blankRuns.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md) + "\n"
}
