package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// WriteJSONL writes one JSON object per chunk, one per line, in slice order.
func WriteJSONL(w io.Writer, chunks []Chunk) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range chunks {
		if err := enc.Encode(&chunks[i]); err != nil {
			return fmt.Errorf("encode chunk %d: %w", chunks[i].ChunkID, err)
		}
	}
	return nil
}

// ReadJSONL decodes a stream written by WriteJSONL.
func ReadJSONL(r io.Reader) ([]Chunk, error) {
	dec := json.NewDecoder(r)
	var out []Chunk
	for {
		var c Chunk
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode chunk %d: %w", len(out), err)
		}
		out = append(out, c)
	}
}
