package chunk

import (
	"testing"

	"github.com/hyperifyio/gobookexport/internal/budget"
)

func BenchmarkChunkText_Heuristic(b *testing.B) {
	text := makeProse(5000, 7)
	c := New(budget.WordHeuristic{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.ChunkText(text, 500, 50, true)
	}
}

func BenchmarkChunkBook_Parallel(b *testing.B) {
	var chapters = sampleChapters()
	for i := 0; i < 5; i++ {
		chapters = append(chapters, chapters...)
	}
	c := &Chunker{Oracle: budget.WordHeuristic{}, Workers: 4}
	cfg := Config{ChunkSize: 200, Overlap: 20, RespectBoundaries: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.ChunkBook(chapters, cfg)
	}
}
