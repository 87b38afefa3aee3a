// Package source loads a book's chapters, in reading order, from an EPUB
// file, a directory of HTML files or a chapter manifest.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperifyio/gobookexport/internal/book"
	"github.com/hyperifyio/gobookexport/internal/extract"
)

// Provider produces a book. Implementations never return a book with
// chapters out of reading order.
type Provider interface {
	Load(ctx context.Context) (book.Book, error)
}

// Fetcher retrieves a remote chapter document and its content type.
// *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// chapterTitle picks the explicit title, then the document title, then a
// positional fallback. index is zero-based.
func chapterTitle(explicit string, html string, index int) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	if t := extract.Title(html); t != "" {
		return t
	}
	return fmt.Sprintf("Chapter %d", index+1)
}

// ReorderCoverFirst moves chapters whose file name or title mentions "cover"
// to the front, keeping relative order within both groups.
func ReorderCoverFirst(chapters []book.Chapter) []book.Chapter {
	covers := make([]book.Chapter, 0, 1)
	rest := make([]book.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if strings.Contains(strings.ToLower(ch.Filename), "cover") || strings.Contains(strings.ToLower(ch.Title), "cover") {
			covers = append(covers, ch)
		} else {
			rest = append(rest, ch)
		}
	}
	return append(covers, rest...)
}
