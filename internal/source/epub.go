package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/taylorskalyo/goreader/epub"

	"github.com/hyperifyio/gobookexport/internal/book"
)

// EPUB reads chapters from the spine of an EPUB container.
type EPUB struct {
	Path string
	// Title overrides the title from the package metadata when set.
	Title string
}

func (e EPUB) Load(ctx context.Context) (book.Book, error) {
	rc, err := epub.OpenReader(e.Path)
	if err != nil {
		return book.Book{}, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return book.Book{}, errors.New("no rootfiles found in epub")
	}
	root := rc.Rootfiles[0]

	b := book.Book{Metadata: epubMetadata(root.Metadata)}
	if t := strings.TrimSpace(e.Title); t != "" {
		b.Metadata.Title = t
	}

	for _, ref := range root.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return book.Book{}, err
		}
		if ref.Item == nil {
			continue
		}
		data, err := readItem(ref.Item)
		if err != nil {
			log.Warn().Err(err).Str("href", ref.Item.HREF).Msg("skipping unreadable spine item")
			continue
		}
		html := string(data)
		b.Chapters = append(b.Chapters, book.Chapter{
			Filename: path.Base(ref.Item.HREF),
			Title:    chapterTitle("", html, len(b.Chapters)),
			HTML:     html,
		})
	}
	log.Debug().Str("path", e.Path).Int("chapters", len(b.Chapters)).Msg("loaded epub")
	return b, nil
}

func readItem(item *epub.Item) ([]byte, error) {
	r, err := item.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func epubMetadata(m epub.Metadata) book.Metadata {
	return book.Metadata{
		Title:      strings.TrimSpace(m.Title),
		Authors:    nonEmpty(m.Creator),
		ISBN:       strings.TrimPrefix(strings.TrimSpace(m.Identifier), "urn:isbn:"),
		Publishers: nonEmpty(m.Publisher),
		Topics:     nonEmpty(m.Subject),
		Language:   strings.TrimSpace(m.Language),
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
