// Package book holds the value types shared by chapter sources, the chunker
// and the exporters.
package book

import "strings"

// Chapter is one unit of book content as delivered by a source, in reading order.
type Chapter struct {
	// Filename is the chapter's original file name (e.g. "ch01.xhtml").
	Filename string
	Title    string
	HTML     string
}

// Metadata describes the book as a whole.
type Metadata struct {
	Title      string   `yaml:"title" json:"title"`
	Authors    []string `yaml:"authors" json:"authors"`
	ISBN       string   `yaml:"isbn" json:"isbn"`
	Publishers []string `yaml:"publishers" json:"publishers"`
	Topics     []string `yaml:"topics" json:"topics"`
	Language   string   `yaml:"language" json:"language"`
}

// Book is the metadata plus its ordered chapters.
type Book struct {
	Metadata Metadata
	Chapters []Chapter
}

// DisplayTitle returns the book title or "Unknown" when none is set.
func (m Metadata) DisplayTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	return "Unknown"
}

// Publisher returns the first publisher or an empty string.
func (m Metadata) Publisher() string {
	if len(m.Publishers) == 0 {
		return ""
	}
	return m.Publishers[0]
}
