package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
	tmpSuffix  = ".tmp"
)

// ClearDir removes dir and everything in it, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Stats summarises what a cache directory holds.
type Stats struct {
	Entries int
	Bytes   int64
}

// DirStats counts complete entries in dir. A missing dir is empty.
func DirStats(dir string) (Stats, error) {
	entries, _, err := scan(dir)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, e := range entries {
		if e.hasMeta && e.hasBody {
			st.Entries++
			st.Bytes += e.size
		}
	}
	return st, nil
}

// PurgeHTTPCacheByAge removes entries whose SavedAt is older than maxAge. It
// also drops half-written leftovers: orphaned meta or body files and
// temporary files from an interrupted Save. Only expired entries are counted.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, leftovers, err := scan(dir)
	if err != nil {
		return 0, err
	}
	for _, p := range leftovers {
		_ = os.Remove(p)
	}
	now := time.Now().UTC()
	removed := 0
	for _, e := range entries {
		if !e.hasMeta || !e.hasBody {
			removeEntry(e.base)
			continue
		}
		saved, ok := savedAt(e.base + metaSuffix)
		if !ok || now.Sub(saved) <= maxAge {
			continue
		}
		removeEntry(e.base)
		removed++
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Dur("max_age", maxAge).Str("dir", dir).Msg("purged expired chapter cache entries")
	}
	return removed, nil
}

// EnforceHTTPCacheLimits evicts least recently used entries until the cache
// holds at most maxEntries entries and maxBytes bytes. A zero limit is
// ignored. Recency is the body mtime, which LoadBody refreshes.
func EnforceHTTPCacheLimits(dir string, maxBytes int64, maxEntries int) (int, error) {
	if maxBytes <= 0 && maxEntries <= 0 {
		return 0, nil
	}
	entries, _, err := scan(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].used.Equal(entries[j].used) {
			return entries[i].base < entries[j].base
		}
		return entries[i].used.Before(entries[j].used)
	})

	removed := 0
	count := len(entries)
	for _, e := range entries {
		if !(maxEntries > 0 && count > maxEntries) && !(maxBytes > 0 && total > maxBytes) {
			break
		}
		removeEntry(e.base)
		count--
		total -= e.size
		removed++
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", count).Int64("bytes", total).Msg("evicted chapter cache entries")
	}
	return removed, nil
}

type entryFiles struct {
	base    string
	size    int64
	used    time.Time
	hasMeta bool
	hasBody bool
}

// scan groups the files in dir by entry. Temporary files are returned
// separately.
func scan(dir string) ([]*entryFiles, []string, error) {
	byBase := map[string]*entryFiles{}
	var leftovers []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, tmpSuffix) {
			leftovers = append(leftovers, path)
			return nil
		}
		isBody := strings.HasSuffix(name, bodySuffix)
		if !isBody && !strings.HasSuffix(name, metaSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		base := strings.TrimSuffix(strings.TrimSuffix(path, bodySuffix), metaSuffix)
		e := byBase[base]
		if e == nil {
			e = &entryFiles{base: base}
			byBase[base] = e
		}
		e.size += info.Size()
		if isBody {
			e.hasBody = true
			e.used = info.ModTime()
		} else {
			e.hasMeta = true
			if e.used.IsZero() {
				e.used = info.ModTime()
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	entries := make([]*entryFiles, 0, len(byBase))
	for _, e := range byBase {
		entries = append(entries, e)
	}
	return entries, leftovers, nil
}

func savedAt(metaPath string) (time.Time, bool) {
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return time.Time{}, false
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return time.Time{}, false
	}
	return e.SavedAt, true
}

func removeEntry(base string) {
	_ = os.Remove(base + metaSuffix)
	_ = os.Remove(base + bodySuffix)
}
