package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt is returned by LoadBody when the stored body does not match the
// digest recorded at save time.
var ErrCorrupt = errors.New("cached body does not match its digest")

// HTTPEntry describes a cached chapter response: the validators needed for a
// conditional request and a digest of the stored body.
type HTTPEntry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	SHA256       string    `json:"sha256"`
	Bytes        int       `json:"bytes"`
	SavedAt      time.Time `json:"saved_at"`
}

// HTTPCache keeps responses on disk as <sha256(url)>.meta.json plus
// <sha256(url)>.body. Eviction happens out of band in PurgeHTTPCacheByAge and
// EnforceHTTPCacheLimits; LoadBody bumps the body mtime so the latter evicts
// least recently used entries first.
type HTTPCache struct {
	Dir string
	// StrictPerms creates the directory 0700 and files 0600.
	StrictPerms bool
}

func (c *HTTPCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	// MkdirAll leaves an existing directory alone.
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode().Perm() != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *HTTPCache) paths(url string) (meta string, body string) {
	h := sha256.Sum256([]byte(url))
	base := filepath.Join(c.Dir, hex.EncodeToString(h[:]))
	return base + metaSuffix, base + bodySuffix
}

// LoadMeta returns the entry for url, or an error wrapping os.ErrNotExist.
func (c *HTTPCache) LoadMeta(_ context.Context, url string) (*HTTPEntry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	metaPath, _ := c.paths(url)
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &e, nil
}

// LoadBody returns the cached body and marks it recently used. Bodies saved
// with a digest are verified; a mismatch yields ErrCorrupt.
func (c *HTTPCache) LoadBody(ctx context.Context, url string) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	_, bodyPath := c.paths(url)
	b, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, err
	}
	if meta, err := c.LoadMeta(ctx, url); err == nil && meta.SHA256 != "" {
		sum := sha256.Sum256(b)
		if hex.EncodeToString(sum[:]) != meta.SHA256 {
			return nil, fmt.Errorf("%s: %w", url, ErrCorrupt)
		}
	}
	now := time.Now()
	_ = os.Chtimes(bodyPath, now, now)
	return b, nil
}

// Save stores an entry. Both files are written to a temporary name and
// renamed, body first, so a reader never sees metadata for a partial body.
func (c *HTTPCache) Save(_ context.Context, url string, contentType string, etag string, lastModified string, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	metaPath, bodyPath := c.paths(url)
	if err := c.writeAtomic(bodyPath, body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	sum := sha256.Sum256(body)
	data, err := json.Marshal(HTTPEntry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		SHA256:       hex.EncodeToString(sum[:]),
		Bytes:        len(body),
		SavedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := c.writeAtomic(metaPath, data); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

func (c *HTTPCache) writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
