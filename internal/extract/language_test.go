package extract

import (
	"testing"

	"golang.org/x/net/html"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name  string
		attrs []html.Attribute
		want  string
	}{
		{"language prefix", []html.Attribute{{Key: "class", Val: "language-Python"}}, "python"},
		{"lang prefix", []html.Attribute{{Key: "class", Val: "code lang-ruby"}}, "ruby"},
		{"highlight prefix", []html.Attribute{{Key: "class", Val: "highlight-sql"}}, "sql"},
		{"data-lang", []html.Attribute{{Key: "data-lang", Val: "Go"}}, "go"},
		{"known bare class", []html.Attribute{{Key: "class", Val: "listing JavaScript"}}, "javascript"},
		{"prefix beats bare class", []html.Attribute{{Key: "class", Val: "python language-go"}}, "go"},
		{"data-lang beats bare class", []html.Attribute{{Key: "class", Val: "python"}, {Key: "data-lang", Val: "rust"}}, "rust"},
		{"unknown class", []html.Attribute{{Key: "class", Val: "pre-wrap listing"}}, ""},
		{"no attributes", nil, ""},
	}
	for _, c := range cases {
		if got := detectLanguage(c.attrs); got != c.want {
			t.Fatalf("%s: detectLanguage = %q, want %q", c.name, got, c.want)
		}
	}
}
