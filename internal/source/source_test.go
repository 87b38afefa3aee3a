package source

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperifyio/gobookexport/internal/book"
	"github.com/hyperifyio/gobookexport/internal/fetch"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeEPUB builds a minimal EPUB 2 container whose spine lists ch02 before ch01.
func writeEPUB(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "book.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	files := []struct{ name, body string }{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`},
		{"OEBPS/content.opf", `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Practical Patterns</dc:title>
    <dc:creator>Ada Writer</dc:creator>
    <dc:publisher>Example Press</dc:publisher>
    <dc:subject>Programming</dc:subject>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="c1" href="text/ch01.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch02.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="c2"/>
    <itemref idref="c1"/>
  </spine>
</package>`},
		{"OEBPS/text/ch01.xhtml", `<html><head><title>First Steps</title></head><body><p>One.</p></body></html>`},
		{"OEBPS/text/ch02.xhtml", `<html><body><h1>Preface</h1><p>Zero.</p></body></html>`},
	}
	for _, file := range files {
		w, err := zw.Create(file.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(file.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEPUB_LoadsSpineInOrder(t *testing.T) {
	p := writeEPUB(t, t.TempDir())
	b, err := EPUB{Path: p}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(b.Chapters))
	}
	if b.Chapters[0].Filename != "ch02.xhtml" || b.Chapters[0].Title != "Preface" {
		t.Fatalf("first chapter = %q/%q", b.Chapters[0].Filename, b.Chapters[0].Title)
	}
	if b.Chapters[1].Filename != "ch01.xhtml" || b.Chapters[1].Title != "First Steps" {
		t.Fatalf("second chapter = %q/%q", b.Chapters[1].Filename, b.Chapters[1].Title)
	}
	if !strings.Contains(b.Chapters[1].HTML, "<p>One.</p>") {
		t.Fatalf("chapter html not loaded: %q", b.Chapters[1].HTML)
	}
	m := b.Metadata
	if m.Title != "Practical Patterns" || m.Language != "en" {
		t.Fatalf("metadata = %+v", m)
	}
	if len(m.Authors) != 1 || m.Authors[0] != "Ada Writer" {
		t.Fatalf("authors = %v", m.Authors)
	}
	if m.Publisher() != "Example Press" {
		t.Fatalf("publisher = %q", m.Publisher())
	}
}

func TestEPUB_TitleOverride(t *testing.T) {
	p := writeEPUB(t, t.TempDir())
	b, err := EPUB{Path: p, Title: "Renamed"}.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Metadata.Title != "Renamed" {
		t.Fatalf("title = %q", b.Metadata.Title)
	}
}

func TestEPUB_MissingFile(t *testing.T) {
	if _, err := (EPUB{Path: filepath.Join(t.TempDir(), "nope.epub")}).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing epub")
	}
}

func TestDir_LoadsSortedHTMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "02-body.xhtml"), "<h1>Body</h1><p>b</p>")
	writeFile(t, filepath.Join(dir, "01-intro.html"), "<p>no heading</p>")
	writeFile(t, filepath.Join(dir, "03-end.HTM"), "<title>End</title>")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "sub", "04-nested.html"), "ignored")

	b, err := Dir{Path: dir, Title: "Loose Pages"}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var names, titles []string
	for _, ch := range b.Chapters {
		names = append(names, ch.Filename)
		titles = append(titles, ch.Title)
	}
	if got := strings.Join(names, ","); got != "01-intro.html,02-body.xhtml,03-end.HTM" {
		t.Fatalf("files = %s", got)
	}
	if got := strings.Join(titles, ","); got != "Chapter 1,Body,End" {
		t.Fatalf("titles = %s", got)
	}
	if b.Metadata.Title != "Loose Pages" {
		t.Fatalf("title = %q", b.Metadata.Title)
	}
}

func TestDir_DefaultsTitleToDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-book")
	writeFile(t, filepath.Join(dir, "a.html"), "<p>a</p>")
	b, err := Dir{Path: dir}.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Metadata.Title != "my-book" {
		t.Fatalf("title = %q", b.Metadata.Title)
	}
}

func TestDir_Pattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "part2", "b.xhtml"), "<h1>B</h1>")
	writeFile(t, filepath.Join(dir, "part1", "a.xhtml"), "<h1>A</h1>")
	writeFile(t, filepath.Join(dir, "part1", "skip.html"), "<h1>Skip</h1>")
	b, err := Dir{Path: dir, Pattern: "**/*.xhtml"}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(b.Chapters))
	}
	if b.Chapters[0].Filename != "part1/a.xhtml" || b.Chapters[1].Filename != "part2/b.xhtml" {
		t.Fatalf("files = %s, %s", b.Chapters[0].Filename, b.Chapters[1].Filename)
	}
}

func TestDir_SniffsExtensionlessFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "chapter1"), "<!DOCTYPE html><html><head><title>One</title></head><body><p>x</p></body></html>")
	writeFile(t, filepath.Join(dir, "README"), "just some notes\n")
	b, err := Dir{Path: dir}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Chapters) != 1 || b.Chapters[0].Filename != "chapter1" || b.Chapters[0].Title != "One" {
		t.Fatalf("chapters = %+v", b.Chapters)
	}
}

type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *mapFetcher) Get(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return []byte(body), "text/html", nil
}

func TestManifest_MixedLocalAndRemote(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "chapters", "one.html"), "<h2>One</h2><p>local</p>")
	writeFile(t, filepath.Join(dir, "book.yaml"), `
title: Manifest Book
authors: [A. Author, B. Author]
isbn: "9781234567890"
publishers: [Example Press]
topics: [Go]
chapters:
  - path: chapters/one.html
  - url: https://books.example/two.xhtml?x=1
    title: Two
  - url: https://books.example/cover.html
    filename: cover.html
`)
	fetcher := &mapFetcher{pages: map[string]string{
		"https://books.example/two.xhtml?x=1": "<p>remote</p>",
		"https://books.example/cover.html":    "<img src=c.png>",
	}}
	b, err := Manifest{Path: filepath.Join(dir, "book.yaml"), Fetcher: fetcher, Workers: 2}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []book.Chapter{
		{Filename: "one.html", Title: "One"},
		{Filename: "two.xhtml", Title: "Two"},
		{Filename: "cover.html", Title: "Chapter 3"},
	}
	if len(b.Chapters) != len(want) {
		t.Fatalf("expected %d chapters, got %d", len(want), len(b.Chapters))
	}
	for i, w := range want {
		if b.Chapters[i].Filename != w.Filename || b.Chapters[i].Title != w.Title {
			t.Fatalf("chapter %d = %q/%q, want %q/%q", i, b.Chapters[i].Filename, b.Chapters[i].Title, w.Filename, w.Title)
		}
	}
	if b.Metadata.Title != "Manifest Book" || b.Metadata.ISBN != "9781234567890" || len(b.Metadata.Authors) != 2 {
		t.Fatalf("metadata = %+v", b.Metadata)
	}
	if len(fetcher.calls) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(fetcher.calls))
	}
}

func TestManifest_CoverFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.html"), "<p>a</p>")
	writeFile(t, filepath.Join(dir, "cover.html"), "<p>cover</p>")
	writeFile(t, filepath.Join(dir, "book.json"), `{"title":"J","chapters":[{"path":"a.html"},{"path":"cover.html"}]}`)
	b, err := Manifest{Path: filepath.Join(dir, "book.json"), CoverFirst: true}.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Chapters[0].Filename != "cover.html" || b.Chapters[1].Filename != "a.html" {
		t.Fatalf("order = %s,%s", b.Chapters[0].Filename, b.Chapters[1].Filename)
	}
}

func TestManifest_FetchErrorFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "book.yaml"), "chapters:\n  - url: https://books.example/missing.html\n")
	_, err := Manifest{Path: filepath.Join(dir, "book.yaml"), Fetcher: &mapFetcher{}}.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "chapter 1") {
		t.Fatalf("expected chapter error, got %v", err)
	}
}

func TestManifest_RemoteWithoutFetcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "book.yaml"), "chapters:\n  - url: https://books.example/a.html\n")
	if _, err := (Manifest{Path: filepath.Join(dir, "book.yaml")}).Load(context.Background()); err == nil {
		t.Fatalf("expected error without fetcher")
	}
}

func TestParseManifest_RequiresExactlyOneLocation(t *testing.T) {
	for _, doc := range []string{
		"chapters:\n  - title: nothing\n",
		"chapters:\n  - path: a.html\n    url: https://x/a.html\n",
	} {
		if _, err := ParseManifest([]byte(doc)); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
}

func TestManifest_WithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xhtml+xml")
		_, _ = w.Write([]byte("<html><head><title>Served</title></head><body><p>x</p></body></html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "book.yaml"), "title: Remote\nchapters:\n  - url: "+srv.URL+"/ch/intro.xhtml\n")
	client := &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	b, err := Manifest{Path: filepath.Join(dir, "book.yaml"), Fetcher: client}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.Chapters[0].Filename != "intro.xhtml" || b.Chapters[0].Title != "Served" {
		t.Fatalf("chapter = %+v", b.Chapters[0])
	}
}

func TestReorderCoverFirst(t *testing.T) {
	in := []book.Chapter{{Filename: "a"}, {Filename: "b", Title: "Cover Art"}, {Filename: "c"}, {Filename: "COVER.xhtml"}}
	out := ReorderCoverFirst(in)
	var got []string
	for _, ch := range out {
		got = append(got, ch.Filename)
	}
	if strings.Join(got, ",") != "b,COVER.xhtml,a,c" {
		t.Fatalf("order = %v", got)
	}
}

func TestURLFilename(t *testing.T) {
	cases := map[string]string{
		"https://x.example/a/b.html":       "b.html",
		"https://x.example/a/b.html?q=1#f": "b.html",
		"https://x.example/":               "index.html",
		"https://x.example":                "index.html",
	}
	for in, want := range cases {
		if got := urlFilename(in); got != want {
			t.Fatalf("urlFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
