package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDF renders the extracted text to <SafeTitle>.pdf: a title page from the
// metadata, then one page run per chapter with a bold heading. Fenced code
// is set in Courier line by line. Other Markdown is not interpreted.
type PDF struct{}

func (PDF) Name() string { return "pdf" }

func (PDF) Export(ctx context.Context, doc *Document, dir string) ([]string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate UTF-8 text into it.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Metadata.DisplayTitle(), true)
	pdf.SetAuthor(strings.Join(doc.Metadata.Authors, ", "), true)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(doc.Metadata.DisplayTitle()), "", "L", false)
	pdf.SetFont("Helvetica", "", 11)
	if h := metadataHeader(doc.Metadata); h != "" {
		pdf.Ln(4)
		for _, line := range strings.Split(h, "\n") {
			if s := strings.TrimSpace(line); s != "" && s != "---" {
				pdf.MultiCell(0, 5, tr(s), "", "L", false)
			}
		}
	}

	for _, c := range doc.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("Chapter %d: %s", c.Index+1, c.Title)), "", "L", false)
		pdf.Ln(2)
		writePDFText(pdf, tr, c.Content.Text)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	name := SafeTitle(doc.Metadata.Title) + ".pdf"
	if err := pdf.OutputFileAndClose(filepath.Join(dir, name)); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return []string{name}, nil
}

func writePDFText(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "", 11)
	inFence := false
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			if inFence {
				pdf.SetFont("Courier", "", 9)
			} else {
				pdf.SetFont("Helvetica", "", 11)
				pdf.Ln(2)
			}
			continue
		}
		if inFence {
			// Keep indentation; MultiCell would reflow it.
			pdf.CellFormat(0, 4, tr(strings.ReplaceAll(line, "\t", "    ")), "", 1, "L", false, 0, "")
			continue
		}
		s := strings.TrimSpace(line)
		if s == "" {
			pdf.Ln(3)
			continue
		}
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
	}
}
