package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/gobookexport/internal/cache"
)

// ErrServer marks 5xx responses, which are retried.
var ErrServer = errors.New("server error")

// ErrTooLarge is returned when a chapter body exceeds MaxBodyBytes.
var ErrTooLarge = errors.New("response body too large")

// errStaleCache marks a 304 whose cached body is missing or corrupt.
var errStaleCache = errors.New("cached body unavailable")

// DefaultMaxBodyBytes caps a single chapter download.
const DefaultMaxBodyBytes = 32 << 20

// Client downloads remote chapter documents. It accepts only HTML and XHTML,
// returns bodies transcoded to UTF-8, retries 5xx and timeouts, revalidates
// against an optional on-disk cache and caps concurrent requests.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// Cache stores UTF-8 bodies with their validators.
	Cache *cache.HTTPCache
	// BypassCache fetches fresh without conditional headers but still saves
	// the latest response to the cache.
	BypassCache bool
	// MaxBodyBytes caps the body; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int

	limiter     chan struct{}
	limiterOnce sync.Once
}

// response is one attempt's outcome.
type response struct {
	status       int
	body         []byte
	contentType  string
	etag         string
	lastModified string
}

// Get downloads url and returns its UTF-8 body and content type. A 304
// answer to a conditional request is served from the cache.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, url); err == nil && meta != nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; ; i++ {
		resp, err := c.attempt(ctx, url, etag, lastMod)
		if err == nil {
			body, ct, ferr := c.finish(ctx, url, resp)
			if errors.Is(ferr, errStaleCache) && (etag != "" || lastMod != "") {
				// The validators outlived their body; ask for a full copy.
				log.Debug().Err(ferr).Str("url", url).Msg("cached body unusable; refetching")
				etag, lastMod = "", ""
				i--
				continue
			}
			return body, ct, ferr
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, "", err
		}
		log.Debug().Err(err).Str("url", url).Int("attempt", i+1).Msg("transient fetch error; retrying")
		if err := sleep(ctx, backoff(i)); err != nil {
			return nil, "", err
		}
	}
}

// finish resolves a 304 against the cache and stores fresh 200 bodies.
func (c *Client) finish(ctx context.Context, url string, resp response) ([]byte, string, error) {
	if resp.status == http.StatusNotModified {
		if c.Cache == nil {
			return nil, "", errors.New("not modified without a cache")
		}
		body, err := c.Cache.LoadBody(ctx, url)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", errStaleCache, err)
		}
		ct := resp.contentType
		if meta, err := c.Cache.LoadMeta(ctx, url); err == nil && meta != nil && meta.ContentType != "" {
			ct = meta.ContentType
		}
		log.Debug().Str("url", url).Msg("not modified; served from cache")
		return body, ct, nil
	}
	if c.Cache != nil {
		if err := c.Cache.Save(ctx, url, resp.contentType, resp.etag, resp.lastModified, resp.body); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("cache save failed")
		}
	}
	return resp.body, resp.contentType, nil
}

func (c *Client) attempt(ctx context.Context, rawURL string, etag string, lastMod string) (response, error) {
	if err := c.acquire(ctx); err != nil {
		return response{}, err
	}
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	req.Header.Set("Accept", "application/xhtml+xml, text/html;q=0.9, */*;q=0.1")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	out := response{
		status:       resp.StatusCode,
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
	switch {
	case resp.StatusCode >= 500:
		return response{}, fmt.Errorf("%w: %d", ErrServer, resp.StatusCode)
	case resp.StatusCode == http.StatusNotModified:
		return out, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return response{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	generic := isGenericContentType(out.contentType)
	if !generic && !isHTMLContentType(out.contentType) {
		return response{}, fmt.Errorf("unsupported content type: %s", out.contentType)
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > limit {
		return response{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if generic {
		out.contentType = mimetype.Detect(raw).String()
		if !isHTMLContentType(out.contentType) {
			return response{}, fmt.Errorf("unsupported content type: %s (sniffed)", out.contentType)
		}
	}
	out.body, out.contentType, err = toUTF8(raw, out.contentType)
	if err != nil {
		return response{}, err
	}
	return out, nil
}

// toUTF8 transcodes body using the charset from the header, a BOM or a
// <meta> declaration. UTF-8 input, and valid UTF-8 whose charset was only
// guessed, is returned untouched.
func toUTF8(body []byte, contentType string) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return body, contentType, nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", name, err)
	}
	media, _, perr := mime.ParseMediaType(contentType)
	if perr != nil || media == "" {
		media = "text/html"
	}
	return decoded, media + "; charset=utf-8", nil
}

func isTransient(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, context.DeadlineExceeded)
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 200 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// httpClient returns a copy of HTTPClient carrying the redirect policy.
func (c *Client) httpClient() *http.Client {
	base := http.Client{Timeout: c.PerRequestTimeout}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	hops := c.RedirectMaxHops
	if hops <= 0 {
		hops = 5
	}
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= hops {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
	return &base
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// isGenericContentType reports a missing or octet-stream type, which is
// resolved by sniffing the body.
func isGenericContentType(ct string) bool {
	ct = strings.TrimSpace(ct)
	return ct == "" || strings.HasPrefix(strings.ToLower(ct), "application/octet-stream")
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}
