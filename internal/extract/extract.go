package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// inlineCodeMaxChars is the exclusive upper bound on the length of a
// single-line <code> element that is rendered inline with backticks.
const inlineCodeMaxChars = 100

// CodeBlock is a code region recovered from <pre> or a long <code> element.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExtractedContent is the normalized text of a document plus the code blocks
// that appear fenced inside it, in document order.
type ExtractedContent struct {
	Text       string
	CodeBlocks []CodeBlock
}

// Extract converts chapter HTML into normalized plain text. Code blocks are
// embedded in the text as ```lang fences and also returned separately.
// Malformed markup never causes a failure; the tokenizer recovers the way a
// browser would and whatever text it yields is used.
func Extract(input string) ExtractedContent {
	w := &walker{}
	z := html.NewTokenizer(strings.NewReader(input))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer error; either way the stream is done.
			break
		}
		tok := z.Token()
		switch tt {
		case html.StartTagToken:
			w.open(tok)
		case html.EndTagToken:
			w.close(tok.Data)
		case html.SelfClosingTagToken:
			w.open(tok)
			w.close(tok.Data)
		case html.TextToken:
			w.text(tok.Data)
		}
	}
	w.finish()

	blocks := w.blocks
	if blocks == nil {
		blocks = []CodeBlock{}
	}
	return ExtractedContent{
		Text:       normalizeWhitespace(w.out.String()),
		CodeBlocks: blocks,
	}
}

// ExtractTextOnly returns only the normalized text of Extract.
func ExtractTextOnly(input string) string {
	return Extract(input).Text
}

// mode is the rendering mode of the walker. The three modes are exclusive.
type mode int

const (
	modeText mode = iota
	// modePre collects everything up to </pre>, including nested <code>.
	modePre
	// modeCode collects a <code> element that is not inside <pre>.
	modeCode
)

// blockTags start on a fresh line and end with a newline.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "blockquote": true,
	"section": true, "article": true, "header": true, "footer": true,
}

type walker struct {
	out    strings.Builder
	code   strings.Builder
	lang   string
	mode   mode
	skip   bool
	blocks []CodeBlock
}

func (w *walker) open(tok html.Token) {
	switch tok.Data {
	case "script", "style":
		w.skip = true
	case "pre":
		if w.mode != modePre {
			w.mode = modePre
			w.lang = detectLanguage(tok.Attr)
			w.code.Reset()
		}
	case "code":
		switch w.mode {
		case modePre:
			// <pre><code class="language-x"> carries the language on the inner element.
			if w.lang == "" {
				w.lang = detectLanguage(tok.Attr)
			}
		case modeText:
			w.mode = modeCode
			w.lang = detectLanguage(tok.Attr)
			w.code.Reset()
		}
	case "li":
		if w.mode == modeText {
			w.out.WriteString("\n- ")
		} else {
			w.code.WriteByte('\n')
		}
	default:
		if blockTags[tok.Data] {
			w.newline()
		}
	}
}

func (w *walker) close(tag string) {
	switch tag {
	case "script", "style":
		w.skip = false
	case "pre":
		if w.mode == modePre {
			if code := strings.TrimSpace(w.code.String()); code != "" {
				w.fence(code)
			}
			w.reset()
		}
	case "code":
		if w.mode == modeCode {
			w.closeCode()
		}
	case "br":
		// A line break is one newline, written on open; <br/> also closes.
	default:
		if blockTags[tag] {
			w.newline()
		}
	}
}

func (w *walker) text(data string) {
	if w.skip {
		return
	}
	if w.mode == modeText {
		w.out.WriteString(data)
		return
	}
	w.code.WriteString(data)
}

// finish closes a code region left open at end of input.
func (w *walker) finish() {
	switch w.mode {
	case modePre:
		if code := strings.TrimSpace(w.code.String()); code != "" {
			w.fence(code)
		}
		w.reset()
	case modeCode:
		w.closeCode()
	}
}

func (w *walker) closeCode() {
	code := strings.TrimSpace(w.code.String())
	switch {
	case code == "":
	case !strings.Contains(code, "\n") && utf8.RuneCountInString(code) < inlineCodeMaxChars:
		w.out.WriteString("`")
		w.out.WriteString(code)
		w.out.WriteString("`")
	default:
		w.fence(code)
	}
	w.reset()
}

func (w *walker) fence(code string) {
	w.blocks = append(w.blocks, CodeBlock{Language: w.lang, Code: code})
	w.out.WriteString("\n```")
	w.out.WriteString(w.lang)
	w.out.WriteString("\n")
	w.out.WriteString(code)
	w.out.WriteString("\n```\n")
}

// newline goes to whichever buffer is active so <br> inside <pre> stays in the code.
func (w *walker) newline() {
	if w.mode == modeText {
		w.out.WriteByte('\n')
		return
	}
	w.code.WriteByte('\n')
}

func (w *walker) reset() {
	w.mode = modeText
	w.lang = ""
	w.code.Reset()
}

// normalizeWhitespace collapses space/tab runs, trims every line, keeps at
// most one blank line between paragraphs and trims the whole document.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(collapseSpaces(line))
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
