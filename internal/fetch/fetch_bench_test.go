package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/gobookexport/internal/cache"
)

// Benchmark the client under different concurrency caps, with and without
// the revalidating cache.
func BenchmarkClient_FetchConcurrencyAndCache(b *testing.B) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chapter", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/xhtml+xml")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("<html><head><title>ok</title></head><body><p>hello</p></body></html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	runScenario := func(name string, maxConc int, useCache bool) {
		b.Run(name, func(b *testing.B) {
			cli := &Client{
				HTTPClient:        ts.Client(),
				UserAgent:         "bench/1",
				MaxAttempts:       1,
				PerRequestTimeout: 2 * time.Second,
				MaxConcurrent:     maxConc,
			}
			if useCache {
				cli.Cache = &cache.HTTPCache{Dir: b.TempDir()}
			}
			url := ts.URL + "/chapter"
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					_, _, err := cli.Get(ctx, url)
					cancel()
					if err != nil {
						b.Fatalf("fetch failed: %v", err)
					}
				}
			})
		})
	}

	runScenario("conc=1,no-cache", 1, false)
	runScenario("conc=8,no-cache", 8, false)
	runScenario("conc=8,cache", 8, true)
}
