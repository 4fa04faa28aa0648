package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultSourceTemplate is the CelesTrak GP endpoint; %s is replaced by the group name.
	DefaultSourceTemplate = "https://celestrak.org/NORAD/elements/gp.php?GROUP=%s&FORMAT=tle"

	// DefaultFetchTimeout bounds a single upstream request.
	DefaultFetchTimeout = 10 * time.Second

	maxBodyBytes = 50 << 20
)

// Fetcher retrieves raw catalog text for a group.
type Fetcher interface {
	Fetch(ctx context.Context, group string) ([]byte, error)
}

// HTTPFetcher retrieves catalog text from an HTTP source.
type HTTPFetcher struct {
	sourceTemplate string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewHTTPFetcher creates a fetcher for sourceTemplate, which must contain one %s
// for the group name. A zero timeout uses DefaultFetchTimeout.
func NewHTTPFetcher(sourceTemplate string, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if sourceTemplate == "" {
		sourceTemplate = DefaultSourceTemplate
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		sourceTemplate: sourceTemplate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SourceURL returns the URL fetched for group.
func (f *HTTPFetcher) SourceURL(group string) string {
	return fmt.Sprintf(f.sourceTemplate, url.QueryEscape(group))
}

// Fetch performs an HTTP GET for the group's catalog. Every failure mode wraps
// ErrUpstreamFetch so callers can treat them uniformly.
func (f *HTTPFetcher) Fetch(ctx context.Context, group string) ([]byte, error) {
	sourceURL := f.SourceURL(group)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUpstreamFetch, err)
	}
	req.Header.Set("Accept", "text/plain")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrUpstreamFetch, group, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d from %s", ErrUpstreamFetch, resp.StatusCode, sourceURL)
	}

	// Read one byte past the limit to detect oversize bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstreamFetch, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d byte limit", ErrUpstreamFetch, maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty response body from %s", ErrUpstreamFetch, sourceURL)
	}

	f.logger.Debug("catalog fetched",
		"group", group,
		"bytes", len(body),
		"lines", strings.Count(string(body), "\n"),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return body, nil
}
