package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Extractor defines a minimal interface for content extraction strategies.
// Implementations can swap parsing tactics without changing callers.
type Extractor interface {
	// Extract converts raw chapter HTML into normalized text and code blocks.
	// Implementations should be deterministic and avoid side effects.
	Extract(input string) ExtractedContent
}

// TokenExtractor walks the HTML token stream with the Extract state machine.
type TokenExtractor struct{}

func (TokenExtractor) Extract(input string) ExtractedContent {
	return Extract(input)
}

// Title returns the document <title>, falling back to the first <h1> or <h2>
// text. It returns an empty string when none is present.
func Title(input string) string {
	node, err := html.Parse(strings.NewReader(input))
	if err != nil || node == nil {
		return ""
	}
	if head := findFirst(node, "head"); head != nil {
		if t := findFirst(head, "title"); t != nil {
			if s := strings.Join(strings.Fields(textContent(t)), " "); s != "" {
				return s
			}
		}
	}
	for _, tag := range []string{"h1", "h2"} {
		if h := findFirst(node, tag); h != nil {
			if s := strings.Join(strings.Fields(textContent(h)), " "); s != "" {
				return s
			}
		}
	}
	return ""
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
