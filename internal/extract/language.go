package extract

import (
	"strings"

	"golang.org/x/net/html"
)

var languagePrefixes = []string{"language-", "lang-", "highlight-"}

var knownLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true, "java": true,
	"c": true, "cpp": true, "csharp": true, "go": true, "rust": true,
	"ruby": true, "php": true, "swift": true, "kotlin": true, "scala": true,
	"sql": true, "html": true, "css": true, "bash": true, "shell": true,
	"json": true, "yaml": true, "xml": true,
}

// detectLanguage guesses the source language of a code element from its
// attributes. Prefixed class tokens win over data-lang, which wins over a
// bare class naming a known language. Unknown yields "".
func detectLanguage(attrs []html.Attribute) string {
	var classes []string
	var dataLang string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "class":
			classes = strings.Fields(a.Val)
		case "data-lang":
			dataLang = a.Val
		}
	}

	for _, cls := range classes {
		lower := strings.ToLower(cls)
		for _, p := range languagePrefixes {
			if strings.HasPrefix(lower, p) {
				return strings.TrimPrefix(lower, p)
			}
		}
	}
	if dataLang != "" {
		return strings.ToLower(dataLang)
	}
	for _, cls := range classes {
		if lower := strings.ToLower(cls); knownLanguages[lower] {
			return lower
		}
	}
	return ""
}
