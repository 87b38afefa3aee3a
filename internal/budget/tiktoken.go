package budget

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// DefaultEncoding is the BPE encoding used by GPT-4 class models.
const DefaultEncoding = "cl100k_base"

// Tiktoken is an exact Oracle backed by a BPE encoding. The encoding is
// loaded on first use; if loading fails the oracle reports ok=false for
// every call and callers fall back to the word heuristic.
type Tiktoken struct {
	name string
	once sync.Once
	// Encode is serialized; the encoder is shared process-wide.
	mu  sync.Mutex
	tke *tiktoken.Tiktoken
	err error
}

var (
	sharedMu  sync.Mutex
	sharedTke = map[string]*Tiktoken{}
)

// SharedTiktoken returns the process-wide oracle for an encoding or model
// name, creating it lazily. Empty selects DefaultEncoding.
func SharedTiktoken(encodingOrModel string) *Tiktoken {
	name := strings.TrimSpace(encodingOrModel)
	if name == "" {
		name = DefaultEncoding
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if t, ok := sharedTke[name]; ok {
		return t
	}
	t := &Tiktoken{name: name}
	sharedTke[name] = t
	return t
}

func (t *Tiktoken) load() {
	tke, err := tiktoken.GetEncoding(t.name)
	if err != nil {
		// Not an encoding name; try it as a model name.
		var merr error
		tke, merr = tiktoken.EncodingForModel(t.name)
		if merr != nil {
			t.err = fmt.Errorf("load encoding %q: %w", t.name, err)
			log.Debug().Err(t.err).Msg("tokenizer unavailable; using word heuristic")
			return
		}
	}
	t.tke = tke
}

// Err returns the load error, if any. It triggers loading.
func (t *Tiktoken) Err() error {
	t.once.Do(t.load)
	return t.err
}

// Name returns the encoding or model name the oracle was created for.
func (t *Tiktoken) Name() string { return t.name }

func (t *Tiktoken) CountTokens(text string) (int, bool) {
	t.once.Do(t.load)
	if t.tke == nil {
		return 0, false
	}
	if text == "" {
		return 0, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tke.Encode(text, nil, nil)), true
}

// NewOracle builds the oracle named by kind: "heuristic" selects
// WordHeuristic, "none" returns nil (no token counts), anything else
// (including "" and "tiktoken") selects the shared Tiktoken for encoding.
func NewOracle(kind string, encoding string) Oracle {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "heuristic", "words", "estimate":
		return WordHeuristic{}
	case "none", "off":
		return nil
	default:
		return SharedTiktoken(encoding)
	}
}
