package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperifyio/gobookexport/internal/extract"
)

// JSON writes <SafeTitle>.json with metadata, chapters and statistics. With
// IncludeJSONL it also writes <SafeTitle>.jsonl holding one chapter object
// per line.
type JSON struct {
	IncludeJSONL bool
}

func (JSON) Name() string { return "json" }

type jsonMetadata struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	ISBN      string   `json:"isbn"`
	Publisher string   `json:"publisher"`
	Topics    []string `json:"topics"`
}

type jsonChapter struct {
	Index      int                 `json:"index"`
	Title      string              `json:"title"`
	Filename   string              `json:"filename"`
	Content    string              `json:"content"`
	CodeBlocks []extract.CodeBlock `json:"code_blocks"`
	WordCount  int                 `json:"word_count"`
	TokenCount *int                `json:"token_count"`
}

type jsonStatistics struct {
	TotalChapters int  `json:"total_chapters"`
	TotalWords    int  `json:"total_words"`
	TotalTokens   *int `json:"total_tokens"`
}

type jsonBook struct {
	Metadata   jsonMetadata   `json:"metadata"`
	Chapters   []jsonChapter  `json:"chapters"`
	Statistics jsonStatistics `json:"statistics"`
}

func buildJSONBook(doc *Document) jsonBook {
	m := doc.Metadata
	out := jsonBook{
		Metadata: jsonMetadata{
			Title:     m.Title,
			Authors:   nonNil(m.Authors),
			ISBN:      m.ISBN,
			Publisher: m.Publisher(),
			Topics:    nonNil(m.Topics),
		},
		Chapters: make([]jsonChapter, 0, len(doc.Chapters)),
		Statistics: jsonStatistics{
			TotalChapters: len(doc.Chapters),
			TotalWords:    doc.TotalWords(),
			TotalTokens:   doc.TotalTokens(),
		},
	}
	for _, c := range doc.Chapters {
		blocks := c.Content.CodeBlocks
		if blocks == nil {
			blocks = []extract.CodeBlock{}
		}
		out.Chapters = append(out.Chapters, jsonChapter{
			Index:      c.Index,
			Title:      c.Title,
			Filename:   c.Filename,
			Content:    c.Content.Text,
			CodeBlocks: blocks,
			WordCount:  c.Words,
			TokenCount: c.Tokens,
		})
	}
	return out
}

func (j JSON) Export(_ context.Context, doc *Document, dir string) ([]string, error) {
	data := buildJSONBook(doc)
	safe := SafeTitle(doc.Metadata.Title)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&data); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	name := safe + ".json"
	if err := writeFile(dir, name, buf.Bytes()); err != nil {
		return nil, err
	}
	written := []string{name}
	if !j.IncludeJSONL {
		return written, nil
	}

	buf.Reset()
	enc = json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range data.Chapters {
		if err := enc.Encode(&data.Chapters[i]); err != nil {
			return written, fmt.Errorf("encode chapter %d: %w", i, err)
		}
	}
	name = safe + ".jsonl"
	if err := writeFile(dir, name, buf.Bytes()); err != nil {
		return written, err
	}
	return append(written, name), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
