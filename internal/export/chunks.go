package export

import (
	"bytes"
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobookexport/internal/chunk"
)

// Chunks writes <SafeTitle>_chunks.jsonl, one chunk object per line.
type Chunks struct {
	Chunker *chunk.Chunker
	Config  chunk.Config
}

func (Chunks) Name() string { return "chunks" }

func (c Chunks) Export(_ context.Context, doc *Document, dir string) ([]string, error) {
	chunker := c.Chunker
	if chunker == nil {
		chunker = chunk.New(nil)
	}
	chunks := chunker.ChunkChapters(doc.ChapterTexts(), c.Config)

	var buf bytes.Buffer
	if err := chunk.WriteJSONL(&buf, chunks); err != nil {
		return nil, err
	}
	name := SafeTitle(doc.Metadata.Title) + "_chunks.jsonl"
	if err := writeFile(dir, name, buf.Bytes()); err != nil {
		return nil, err
	}
	log.Info().Int("chunks", len(chunks)).Int("chunk_size", c.Config.ChunkSize).Int("overlap", c.Config.Overlap).Msg("wrote chunks")
	return []string{name}, nil
}
