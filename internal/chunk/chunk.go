// Package chunk splits extracted chapter text into overlapping windows sized
// by a token budget, preferring paragraph, then sentence, then word breaks.
//
// Offsets are rune (character) positions into the chapter's normalized text.
// A Chunker holds no mutable state, so one instance may chunk many chapters
// concurrently as long as its Oracle is safe for concurrent use.
package chunk

import (
	"strings"

	"github.com/hyperifyio/gobookexport/internal/book"
	"github.com/hyperifyio/gobookexport/internal/budget"
	"github.com/hyperifyio/gobookexport/internal/extract"
)

const (
	DefaultChunkSize = 4000
	DefaultOverlap   = 200

	// defaultSearchWindow is how far before the estimated cut a better break
	// point is looked for; the window extends half as far after it.
	defaultSearchWindow = 500
)

// Config controls chunk sizing. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	// ChunkSize is the target number of tokens per chunk.
	ChunkSize int `yaml:"chunkSize" json:"chunk_size"`
	// Overlap is the target number of tokens shared by consecutive chunks.
	Overlap int `yaml:"overlap" json:"overlap"`
	// RespectBoundaries prefers paragraph/sentence/word breaks over the raw
	// estimated cut point.
	RespectBoundaries bool `yaml:"respectBoundaries" json:"respect_boundaries"`
}

// DefaultConfig returns 4000-token chunks with 200 tokens of overlap that
// respect text boundaries.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap, RespectBoundaries: true}
}

// Piece is one window of a single text.
type Piece struct {
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	// StartOffset and EndOffset delimit the untrimmed window; Content is the
	// trimmed text between them.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
}

// Chunk is a Piece attributed to a chapter, with a dense book-wide ID.
type Chunk struct {
	Piece
	ChunkID         int    `json:"chunk_id"`
	ChapterIndex    int    `json:"chapter_index"`
	ChapterTitle    string `json:"chapter_title"`
	ChapterFilename string `json:"chapter_filename"`
}

// Chunker splits text using an injected token oracle. A nil Oracle or one
// that reports itself unavailable falls back to the word-count heuristic.
type Chunker struct {
	Oracle budget.Oracle
	// Extractor turns chapter HTML into text; nil uses extract.TokenExtractor.
	Extractor extract.Extractor
	// Workers > 1 chunks that many chapters at a time in ChunkBook.
	Workers int
}

// New returns a Chunker counting tokens with o.
func New(o budget.Oracle) *Chunker {
	return &Chunker{Oracle: o}
}

// ChunkText splits text into windows of about chunkSize tokens, consecutive
// windows sharing about overlap tokens. Empty text yields an empty slice.
// Whitespace-only windows are dropped. The cursor advances by at least one
// character per window, so the loop always terminates; chunkSize and
// overlap are not validated.
func (c *Chunker) ChunkText(text string, chunkSize int, overlap int, respectBoundaries bool) []Piece {
	pieces := []Piece{}
	if text == "" {
		return pieces
	}
	s := splitter{runes: []rune(text), oracle: c.Oracle}
	n := len(s.runes)

	start := 0
	for start < n {
		targetEnd := min(s.estimateCharPosition(start, chunkSize), n)

		end := targetEnd
		if respectBoundaries && targetEnd < n {
			end = s.findBreakPoint(targetEnd, defaultSearchWindow)
		}
		if end <= start {
			end = targetEnd
		}
		if end <= start {
			// Degenerate oracle estimate; keep moving.
			end = start + 1
		}

		if content := strings.TrimSpace(string(s.runes[start:end])); content != "" {
			pieces = append(pieces, Piece{
				Content:     content,
				TokenCount:  s.count(content),
				StartOffset: start,
				EndOffset:   end,
			})
		}
		if end >= n {
			break
		}

		overlapChars := 0
		if overlap > 0 {
			from := max(end-overlap*budget.CharsPerToken, 0)
			overlapChars = s.estimateCharPosition(from, overlap) - from
		}
		start = max(end-min(overlapChars, end-start-1), start+1)
	}
	return pieces
}

// ChapterText is a chapter whose HTML has already been extracted.
type ChapterText struct {
	Title    string
	Filename string
	Text     string
}

// ChunkBook extracts every chapter and chunks it with ChunkChapters.
func (c *Chunker) ChunkBook(chapters []book.Chapter, cfg Config) []Chunk {
	return c.ChunkChapters(c.extractChapters(chapters), cfg)
}

// ChunkChapters chunks each chapter independently; chunks never span
// chapters. IDs are assigned after empty windows are dropped, so they run
// 0..len-1 in chapter order.
func (c *Chunker) ChunkChapters(chapters []ChapterText, cfg Config) []Chunk {
	perChapter := make([][]Piece, len(chapters))
	c.each(len(chapters), func(i int) {
		perChapter[i] = c.ChunkText(chapters[i].Text, cfg.ChunkSize, cfg.Overlap, cfg.RespectBoundaries)
	})

	total := 0
	for _, pieces := range perChapter {
		total += len(pieces)
	}
	chunks := make([]Chunk, 0, total)
	id := 0
	for i, pieces := range perChapter {
		for _, p := range pieces {
			chunks = append(chunks, Chunk{
				Piece:           p,
				ChunkID:         id,
				ChapterIndex:    i,
				ChapterTitle:    chapters[i].Title,
				ChapterFilename: chapters[i].Filename,
			})
			id++
		}
	}
	return chunks
}

func (c *Chunker) extractor() extract.Extractor {
	if c.Extractor != nil {
		return c.Extractor
	}
	return extract.TokenExtractor{}
}
