package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestFetcherBodyLimit verifies that responses exceeding the 50 MB limit
// return an error instead of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		// Write in 1 MB chunks to exceed the 50 MB limit.
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 52; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return // Client closed connection.
			}
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL+"/?GROUP=%s", 0, testLogger)
	_, err := fetcher.Fetch(context.Background(), "starlink")
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
	if !errors.Is(err, ErrUpstreamFetch) {
		t.Errorf("error should wrap ErrUpstreamFetch: %v", err)
	}
}

func TestFetcherSuccess(t *testing.T) {
	var gotGroup string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGroup = r.URL.Query().Get("GROUP")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL+"/gp.php?GROUP=%s&FORMAT=tle", time.Second, testLogger)
	data, err := fetcher.Fetch(context.Background(), "iridium-NEXT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != issTLE {
		t.Errorf("body mismatch: got %d bytes, want %d", len(data), len(issTLE))
	}
	if gotGroup != "iridium-NEXT" {
		t.Errorf("upstream saw GROUP=%q, want iridium-NEXT", gotGroup)
	}
}

func TestFetcherFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
		{
			name: "whitespace body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("\n\n   \n"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := NewHTTPFetcher(server.URL+"/?GROUP=%s", time.Second, testLogger)
			_, err := fetcher.Fetch(context.Background(), "kuiper")
			if !errors.Is(err, ErrUpstreamFetch) {
				t.Fatalf("expected ErrUpstreamFetch, got %v", err)
			}
		})
	}
}

func TestFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(server.URL+"/?GROUP=%s", 50*time.Millisecond, testLogger)
	_, err := fetcher.Fetch(context.Background(), "starlink")
	if !errors.Is(err, ErrUpstreamFetch) {
		t.Fatalf("expected ErrUpstreamFetch on timeout, got %v", err)
	}
}

func TestFetcherSourceURL(t *testing.T) {
	f := NewHTTPFetcher("", 0, testLogger)
	want := "https://celestrak.org/NORAD/elements/gp.php?GROUP=starlink&FORMAT=tle"
	if got := f.SourceURL("starlink"); got != want {
		t.Errorf("SourceURL = %q, want %q", got, want)
	}
}
