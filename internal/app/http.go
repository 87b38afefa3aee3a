package app

import (
	"net"
	"net/http"
	"time"
)

// newChapterHTTPClient returns a pooled client for manifest chapter
// downloads. Most manifests point at one host, so the per-host idle pool is
// sized for the fetch worker count rather than left at the default of two.
func newChapterHTTPClient(workers int) *http.Client {
	if workers < 1 {
		workers = 1
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   workers * 2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
