package chunk

import (
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/gobookexport/internal/book"
)

func (c *Chunker) extractChapters(chapters []book.Chapter) []ChapterText {
	out := make([]ChapterText, len(chapters))
	ex := c.extractor()
	c.each(len(chapters), func(i int) {
		out[i] = ChapterText{
			Title:    chapters[i].Title,
			Filename: chapters[i].Filename,
			Text:     ex.Extract(chapters[i].HTML).Text,
		}
	})
	return out
}

// each runs work for 0..n-1, Workers at a time when Workers > 1. work must
// only touch its own index.
func (c *Chunker) each(n int, work func(i int)) {
	if c.Workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			work(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(c.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			work(i)
			return nil
		})
	}
	_ = g.Wait()
}
