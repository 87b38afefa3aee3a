package robots

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher is the chapter download capability Gate wraps.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Gate checks robots.txt before delegating to Next and spaces requests to the
// same host by the group's Crawl-delay.
type Gate struct {
	Next      Fetcher
	Manager   *Manager
	UserAgent string

	mu   sync.Mutex
	next map[string]time.Time
}

func (g *Gate) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse url: %w", err)
	}
	rules, err := g.Manager.RulesFor(ctx, rawURL)
	if err != nil {
		log.Warn().Err(err).Str("host", u.Host).Msg("robots.txt unavailable; treating host as disallowed")
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !rules.IsAllowed(g.UserAgent, path) {
		return nil, "", fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	if err := g.wait(ctx, u.Host, rules.CrawlDelayFor(g.UserAgent)); err != nil {
		return nil, "", err
	}
	return g.Next.Get(ctx, rawURL)
}

// wait reserves the next slot for host and sleeps until it arrives.
func (g *Gate) wait(ctx context.Context, host string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	g.mu.Lock()
	if g.next == nil {
		g.next = make(map[string]time.Time)
	}
	now := time.Now()
	at := g.next[host]
	if at.Before(now) {
		at = now
	}
	g.next[host] = at.Add(delay)
	g.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
