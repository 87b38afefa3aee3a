// Package robots decides whether remote chapter URLs may be downloaded
// according to the site's robots.txt, and paces requests by Crawl-delay.
package robots

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobookexport/internal/cache"
)

// ErrDisallowed is returned by Gate for URLs robots.txt forbids.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Rules is a parsed robots.txt.
type Rules struct {
	Groups []Group
}

// Group is one User-agent block.
type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay time.Duration
}

// disallowAll is what an unreachable robots.txt means.
var disallowAll = Rules{Groups: []Group{{Agents: []string{"*"}, Disallow: []string{"/"}}}}

// Manager fetches and memoizes robots.txt per origin. Responses go through
// the HTTP cache so later runs revalidate with ETag/Last-Modified.
type Manager struct {
	HTTPClient *http.Client
	Cache      *cache.HTTPCache
	UserAgent  string
	// EntryExpiry bounds how long parsed rules stay in memory. Zero means 30m.
	EntryExpiry time.Duration

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// RulesFor returns the rules governing rawURL. A missing robots.txt (4xx)
// allows everything. A 5xx or network failure yields disallow-all along with
// the error, so callers can log it and still get a safe answer.
func (m *Manager) RulesFor(ctx context.Context, rawURL string) (Rules, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return disallowAll, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return disallowAll, fmt.Errorf("unsupported url scheme: %q", rawURL)
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	now := m.clock()
	m.mu.Lock()
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	if ent, ok := m.mem[robotsURL]; ok && now.Before(ent.expiry) {
		m.mu.Unlock()
		return ent.rules, nil
	}
	m.mu.Unlock()

	rules, err := m.fetch(ctx, robotsURL)
	if err != nil {
		// Not memoized; the next chapter retries.
		return disallowAll, err
	}
	exp := m.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	m.mu.Lock()
	m.mem[robotsURL] = memEntry{rules: rules, expiry: now.Add(exp)}
	m.mu.Unlock()
	return rules, nil
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Manager) fetch(ctx context.Context, robotsURL string) (Rules, error) {
	return m.download(ctx, robotsURL, true)
}

func (m *Manager) download(ctx context.Context, robotsURL string, conditional bool) (Rules, error) {
	var etag, lastMod string
	if conditional && m.Cache != nil {
		if meta, err := m.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, fmt.Errorf("new request: %w", err)
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && m.Cache != nil:
		body, err := m.Cache.LoadBody(ctx, robotsURL)
		if err != nil && conditional {
			log.Debug().Err(err).Str("url", robotsURL).Msg("cached robots unusable; refetching")
			return m.download(ctx, robotsURL, false)
		}
		if err != nil {
			return Rules{}, fmt.Errorf("load cached robots: %w", err)
		}
		return Parse(string(body)), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Rules{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, fmt.Errorf("robots.txt status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return Rules{}, fmt.Errorf("read robots: %w", err)
	}
	if m.Cache != nil {
		if err := m.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data); err != nil {
			log.Debug().Err(err).Str("url", robotsURL).Msg("robots cache save failed")
		}
	}
	return Parse(string(data)), nil
}

// Parse reads robots.txt text. Unknown directives are ignored.
func Parse(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	var cur Group
	inRules := false
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			// A User-agent after rules starts a new group.
			if inRules {
				groups = append(groups, cur)
				cur, inRules = Group{}, false
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
		case "allow":
			cur.Allow = append(cur.Allow, val)
			inRules = true
		case "disallow":
			cur.Disallow = append(cur.Disallow, val)
			inRules = true
		case "crawl-delay", "crawldelay":
			if d, err := time.ParseDuration(val + "s"); err == nil && d > 0 {
				cur.CrawlDelay = d
			}
			inRules = true
		}
	}
	if len(cur.Agents) > 0 || inRules {
		groups = append(groups, cur)
	}
	return Rules{Groups: groups}
}

// IsAllowed reports whether path (with optional query) may be fetched by
// userAgent. The most specific agent group applies; within it the longest
// matching pattern wins and Allow wins ties. No match means allowed.
func (r Rules) IsAllowed(userAgent string, path string) bool {
	g, ok := r.group(userAgent)
	if !ok {
		return true
	}
	best, allow := -1, true
	for _, p := range g.Disallow {
		if p != "" && matches(p, path) && specificity(p) > best {
			best, allow = specificity(p), false
		}
	}
	for _, p := range g.Allow {
		if p != "" && matches(p, path) && specificity(p) >= best {
			best, allow = specificity(p), true
		}
	}
	return allow
}

// CrawlDelayFor returns the delay of the group matching userAgent, or zero.
func (r Rules) CrawlDelayFor(userAgent string) time.Duration {
	g, ok := r.group(userAgent)
	if !ok {
		return 0
	}
	return g.CrawlDelay
}

// group picks the group whose agent token is the longest substring of
// userAgent; "*" matches with the lowest score. First group wins ties.
func (r Rules) group(userAgent string) (Group, bool) {
	ua := strings.ToLower(userAgent)
	idx, score := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			s := -1
			switch {
			case a == "*":
				s = 0
			case a != "" && strings.Contains(ua, a):
				s = len(a)
			}
			if s > score {
				idx, score = i, s
			}
		}
	}
	if idx < 0 {
		return Group{}, false
	}
	return r.Groups[idx], true
}

// matches anchors pattern at the start of path. '*' matches any run of
// characters and a trailing '$' anchors the end.
func matches(pattern string, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	for _, part := range parts[1:] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	if !anchored {
		return true
	}
	if rest == "" {
		return true
	}
	// A trailing '*' before '$' can absorb the remainder.
	last := parts[len(parts)-1]
	return len(parts) > 1 && strings.HasSuffix(path, last)
}

func specificity(pattern string) int {
	return len(strings.ReplaceAll(strings.TrimSuffix(pattern, "$"), "*", ""))
}
