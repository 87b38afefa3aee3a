package budget

import "testing"

func TestEstimateTokensFromWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},                   // 1.3 -> 1
		{"one two three", 3},         // 3.9 -> 3
		{"a b c d e f g h i j", 13},  // 13.0
		{"tabs\tand\nnewlines  split", 5}, // 4 words -> 5.2 -> 5
	}
	for _, c := range cases {
		if got := EstimateTokensFromWords(c.in); got != c.want {
			t.Fatalf("EstimateTokensFromWords(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

type unavailableOracle struct{}

func (unavailableOracle) CountTokens(string) (int, bool) { return 0, false }

type fixedOracle struct{ n int }

func (f fixedOracle) CountTokens(string) (int, bool) { return f.n, true }

func TestCountOrEstimate_FallsBackWhenUnavailable(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	n, exact := CountOrEstimate(unavailableOracle{}, text)
	if exact {
		t.Fatal("expected estimate when oracle is unavailable")
	}
	if n != 13 {
		t.Fatalf("expected heuristic 13, got %d", n)
	}
	n, exact = CountOrEstimate(nil, text)
	if exact || n != 13 {
		t.Fatalf("nil oracle: got %d exact=%t", n, exact)
	}
	n, exact = CountOrEstimate(fixedOracle{n: 42}, text)
	if !exact || n != 42 {
		t.Fatalf("available oracle: got %d exact=%t", n, exact)
	}
	if Count(fixedOracle{n: 7}, text) != 7 {
		t.Fatal("Count should return the oracle value")
	}
}

func TestCountOrEstimate_HeuristicIsNotExact(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	n, exact := CountOrEstimate(WordHeuristic{}, text)
	if exact {
		t.Fatal("word heuristic counts must not be reported exact")
	}
	if n != 13 {
		t.Fatalf("expected 13, got %d", n)
	}
	if IsExact(nil) || IsExact(WordHeuristic{}) || !IsExact(fixedOracle{n: 1}) {
		t.Fatal("IsExact misclassified an oracle")
	}
}

func TestAvailable(t *testing.T) {
	if Available(nil) {
		t.Fatal("nil oracle must not be available")
	}
	if Available(unavailableOracle{}) {
		t.Fatal("unavailable oracle reported available")
	}
	if !Available(WordHeuristic{}) {
		t.Fatal("heuristic must always be available")
	}
}

func TestModelContextTokens(t *testing.T) {
	if ModelContextTokens("") != 8192 {
		t.Fatal("empty model should default to 8192")
	}
	if ModelContextTokens("gpt-4o") < 100_000 {
		t.Fatal("gpt-4o should be large (~128k)")
	}
	if ModelContextTokens("LLAMA-3.1") < 100_000 {
		t.Fatal("case-insensitive match for llama-3.1 should be ~128k")
	}
	if ModelContextTokens("mystery-512k") != 512_000 {
		t.Fatal("numeric suffix heuristic 512k should map to 512k tokens")
	}
}

func TestHeadroomAndChunkFit(t *testing.T) {
	if HeadroomTokens("") != 512 { // 5% of 8192 is 410, floor is 512
		t.Fatalf("default model headroom should floor to 512")
	}
	if !ChunkFitsModel("gpt-4o", 4000) {
		t.Fatal("4000-token chunks should fit gpt-4o")
	}
	if ChunkFitsModel("", 8000) {
		t.Fatal("8000-token chunks should not fit the 8k default with headroom")
	}
}

func TestNewOracle(t *testing.T) {
	if _, ok := NewOracle("heuristic", "").(WordHeuristic); !ok {
		t.Fatal("heuristic kind should select WordHeuristic")
	}
	o, ok := NewOracle("tiktoken", "").(*Tiktoken)
	if !ok {
		t.Fatal("tiktoken kind should select *Tiktoken")
	}
	if o.Name() != DefaultEncoding {
		t.Fatalf("expected default encoding, got %q", o.Name())
	}
	if NewOracle("none", "") != nil {
		t.Fatal("none should disable counting")
	}
}

func TestSharedTiktoken_SameInstance(t *testing.T) {
	a := SharedTiktoken("cl100k_base")
	b := SharedTiktoken(" cl100k_base ")
	if a != b {
		t.Fatal("expected one shared oracle per encoding")
	}
	if SharedTiktoken("") != a {
		t.Fatal("empty name should map to the default encoding")
	}
}

func TestTiktoken_UnknownEncodingIsUnavailable(t *testing.T) {
	o := SharedTiktoken("no-such-encoding-or-model")
	if _, ok := o.CountTokens("hello"); ok {
		t.Fatal("unknown encoding must report unavailable")
	}
	if o.Err() == nil {
		t.Fatal("expected load error")
	}
	n, exact := CountOrEstimate(o, "hello world")
	if exact || n != 2 {
		t.Fatalf("expected heuristic fallback 2, got %d exact=%t", n, exact)
	}
}

func TestTiktoken_CountsExactly(t *testing.T) {
	o := SharedTiktoken(DefaultEncoding)
	if err := o.Err(); err != nil {
		t.Skipf("encoding not loadable in this environment: %v", err)
	}
	n, ok := o.CountTokens("hello world")
	if !ok || n != 2 {
		t.Fatalf("expected 2 tokens, got %d ok=%t", n, ok)
	}
	if n, ok := o.CountTokens(""); !ok || n != 0 {
		t.Fatalf("empty text: got %d ok=%t", n, ok)
	}
}
