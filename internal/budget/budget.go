package budget

import (
	"math"
	"strings"
)

// CharsPerToken is the rough English ratio used to turn a token budget into
// a first character estimate.
const CharsPerToken = 4

// TokensPerWord is the multiplier of the word-count heuristic.
const TokensPerWord = 1.3

// Oracle reports the token count of a text. ok is false when the oracle
// cannot count right now (for example the tokenizer failed to load); callers
// then fall back to WordHeuristic. Implementations must be safe for
// concurrent use.
type Oracle interface {
	CountTokens(text string) (count int, ok bool)
}

// exactReporter is implemented by oracles that know whether their counts are
// exact. Oracles without it are taken to count exactly.
type exactReporter interface {
	Exact() bool
}

// IsExact reports whether counts from o are exact rather than estimated. A
// nil oracle counts nothing and is not exact.
func IsExact(o Oracle) bool {
	if o == nil {
		return false
	}
	if r, ok := o.(exactReporter); ok {
		return r.Exact()
	}
	return true
}

// WordHeuristic estimates tokens as floor(words * 1.3). It is always
// available and never exact.
type WordHeuristic struct{}

func (WordHeuristic) CountTokens(text string) (int, bool) {
	return EstimateTokensFromWords(text), true
}

func (WordHeuristic) Exact() bool { return false }

// EstimateTokensFromWords applies the word-count heuristic.
func EstimateTokensFromWords(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words) * TokensPerWord)
}

// CountOrEstimate counts with o when it is available and otherwise estimates
// with the word heuristic. exact is true only when o produced the count and
// o counts exactly.
func CountOrEstimate(o Oracle, text string) (count int, exact bool) {
	if o != nil {
		if n, ok := o.CountTokens(text); ok {
			return n, IsExact(o)
		}
	}
	return EstimateTokensFromWords(text), false
}

// Count is CountOrEstimate without the exactness flag.
func Count(o Oracle, text string) int {
	n, _ := CountOrEstimate(o, text)
	return n
}

// Available reports whether o can currently produce counts. A nil oracle is
// never available.
func Available(o Oracle) bool {
	if o == nil {
		return false
	}
	_, ok := o.CountTokens("")
	return ok
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a sensible default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	// Heuristics based on common suffixes present in model names
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "512k"):
		return 512_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// HeadroomTokens returns a safety margin for prompt framing: the larger of 5%
// of the model context or 512 tokens.
func HeadroomTokens(modelName string) int {
	max := ModelContextTokens(modelName)
	dyn := int(math.Ceil(float64(max) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// ChunkFitsModel reports whether a chunk of chunkSize tokens leaves the
// model's headroom free inside its context window.
func ChunkFitsModel(modelName string, chunkSize int) bool {
	return chunkSize+HeadroomTokens(modelName) <= ModelContextTokens(modelName)
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4":         8_192,
	"gpt-4-32k":     32_768,
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-3.5-turbo": 16_384,

	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,

	"llama-3":   8_192,
	"llama-3.1": 128_000,
}
