package export

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	ManifestName = "manifest.json"
	SumsName     = "SHA256SUMS"
)

// ManifestEntry records one written artifact.
type ManifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// RunInfo captures the settings that produced the artifacts so a run can be
// reproduced.
type RunInfo struct {
	Title             string    `json:"title"`
	Source            string    `json:"source"`
	Formats           []string  `json:"formats"`
	Chapters          int       `json:"chapters"`
	Tokenizer         string    `json:"tokenizer"`
	TokensExact       bool      `json:"tokens_exact"`
	ChunkSize         int       `json:"chunk_size"`
	Overlap           int       `json:"overlap"`
	RespectBoundaries bool      `json:"respect_boundaries"`
	Version           string    `json:"version"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Manifest is the machine-readable sidecar written next to the outputs.
type Manifest struct {
	Run   RunInfo         `json:"run"`
	Files []ManifestEntry `json:"files"`
}

// BuildManifest digests every file (relative to dir) in path order.
func BuildManifest(dir string, run RunInfo, files []string) (Manifest, error) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	m := Manifest{Run: run, Files: make([]ManifestEntry, 0, len(sorted))}
	for _, rel := range sorted {
		sum, size, err := sha256File(filepath.Join(dir, rel))
		if err != nil {
			return Manifest{}, fmt.Errorf("digest %s: %w", rel, err)
		}
		m.Files = append(m.Files, ManifestEntry{Path: filepath.ToSlash(rel), SHA256: sum, Bytes: size})
	}
	return m, nil
}

// WriteManifest writes manifest.json and SHA256SUMS into dir and returns
// their names.
func WriteManifest(dir string, m Manifest) ([]string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFile(dir, ManifestName, append(data, '\n')); err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, e := range m.Files {
		b.WriteString(e.SHA256)
		b.WriteString("  ")
		b.WriteString(e.Path)
		b.WriteString("\n")
	}
	if err := writeFile(dir, SumsName, []byte(b.String())); err != nil {
		return []string{ManifestName}, err
	}
	return []string{ManifestName, SumsName}, nil
}

func sha256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Archive packs dir into a gzip-compressed tarball at outPath. Entries are
// nested under the directory's base name. outPath must be outside dir.
func Archive(dir string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	base := filepath.Base(dir)
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return walkErr
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}
