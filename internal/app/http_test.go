package app

import (
	"net/http"
	"reflect"
	"testing"
)

func TestNewChapterHTTPClient_Config(t *testing.T) {
	c := newChapterHTTPClient(8)
	if c.Timeout == 0 {
		t.Fatalf("expected non-zero timeout")
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.MaxIdleConnsPerHost != 16 {
		t.Fatalf("expected MaxIdleConnsPerHost=16, got %d", tr.MaxIdleConnsPerHost)
	}
	// Ensure we didn't return the default client's transport
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}

func TestNewChapterHTTPClient_ClampsWorkers(t *testing.T) {
	tr := newChapterHTTPClient(0).Transport.(*http.Transport)
	if tr.MaxIdleConnsPerHost != 2 {
		t.Fatalf("expected MaxIdleConnsPerHost=2 for zero workers, got %d", tr.MaxIdleConnsPerHost)
	}
}
