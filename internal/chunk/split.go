package chunk

import (
	"unicode"

	"github.com/hyperifyio/gobookexport/internal/budget"
)

// splitter holds one text as runes so every offset is a character position.
type splitter struct {
	runes  []rune
	oracle budget.Oracle
}

func (s *splitter) count(text string) int {
	return budget.Count(s.oracle, text)
}

// estimateCharPosition returns the offset roughly tokenCount tokens after
// start. It guesses 4 characters per token, measures that slice once, and
// rescales by target/actual when the measurement is outside 80%..120% of the
// target. The result is clamped to the text length.
func (s *splitter) estimateCharPosition(start int, tokenCount int) int {
	n := len(s.runes)
	estimated := tokenCount * budget.CharsPerToken
	target := start + estimated
	if target >= n {
		return n
	}

	actual := s.count(string(s.runes[start:target]))
	want := float64(tokenCount)
	switch {
	case float64(actual) < want*0.8:
		ratio := want / float64(max(actual, 1))
		target = start + int(float64(estimated)*ratio)
	case float64(actual) > want*1.2:
		ratio := want / float64(actual)
		target = start + int(float64(estimated)*ratio)
	}
	return min(target, n)
}

// findBreakPoint looks for a cut near target inside
// [target-window, target+window/2], in priority order:
//  1. the end of the first paragraph break (2+ newlines) ending in the
//     second half of the window;
//  2. the end of the last sentence terminator ([.!?] plus whitespace) that
//     ends no later than target+window/4;
//  3. just after the last space before target+50;
//  4. target itself.
func (s *splitter) findBreakPoint(target int, window int) int {
	r := s.runes
	n := len(r)
	windowStart := max(0, target-window)
	windowEnd := min(n, target+window/2)

	paragraphFloor := windowStart + window/2
	for i := windowStart; i < windowEnd; {
		if r[i] == '\n' && i+1 < windowEnd && r[i+1] == '\n' {
			j := i
			for j < windowEnd && r[j] == '\n' {
				j++
			}
			if j >= paragraphFloor {
				return j
			}
			i = j
			continue
		}
		i++
	}

	sentenceCeil := target + window/4
	best := 0
	for i := windowStart; i < windowEnd; {
		if isSentenceEnd(r[i]) && i+1 < windowEnd && unicode.IsSpace(r[i+1]) {
			j := i + 1
			for j < windowEnd && unicode.IsSpace(r[j]) {
				j++
			}
			if j <= sentenceCeil {
				best = j
			}
			i = j
			continue
		}
		i++
	}
	if best > 0 {
		return best
	}

	for i := min(target+50, n) - 1; i > windowStart; i-- {
		if r[i] == ' ' {
			return i + 1
		}
	}
	return target
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
