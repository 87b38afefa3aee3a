package export

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

const (
	maxFilenameRunes = 200
	maxSlugRunes     = 100
)

var filenameReplacer = strings.NewReplacer(
	"/", "-",
	`\`, "-",
	":", " -",
	"?", "",
	"*", "",
	`"`, "'",
	"<", "",
	">", "",
	"|", "-",
)

// SanitizeFilename makes name safe to use as a file name on common file
// systems. The result is NFC-normalized, has no leading or trailing
// whitespace or dots, and is at most 200 characters long. It may be empty.
func SanitizeFilename(name string) string {
	name = filenameReplacer.Replace(norm.NFC.String(name))
	name = strings.Trim(strings.TrimSpace(name), ".")
	if r := []rune(name); len(r) > maxFilenameRunes {
		name = strings.TrimSpace(string(r[:maxFilenameRunes]))
	}
	return name
}

// Slugify turns name into a lowercase ASCII slug of letters, digits and
// hyphens, at most 100 characters long. Quotes are dropped rather than
// becoming separators, so "Don't Panic" is "dont-panic".
func Slugify(name string) string {
	name = strings.NewReplacer("'", "", `"`, "", "’", "").Replace(name)
	s := slug.Make(name)
	if len(s) > maxSlugRunes {
		s = strings.TrimRight(s[:maxSlugRunes], "-")
	}
	return s
}

// SafeTitle is the sanitized book title used for single-file outputs.
func SafeTitle(title string) string {
	if s := SanitizeFilename(title); s != "" {
		return s
	}
	return "Unknown"
}

// FileStem returns the base name of a chapter file without its extension.
// Chapter file names may use slash separators.
func FileStem(name string) string {
	base := path.Base(filepath.ToSlash(name))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ChapterFilename numbers a chapter output file so directory listings keep
// reading order: ChapterFilename("ch01.xhtml", 1, ".txt") is "001_ch01.txt".
func ChapterFilename(original string, index int, ext string) string {
	return fmt.Sprintf("%03d_%s%s", index, FileStem(original), ext)
}
