// Package fetch retrieves raw page and document bytes over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxBodyBytes caps a single fetched document (pages beyond this are
	// truncated rather than failing the crawl)
	maxBodyBytes = 16 * 1024 * 1024

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "sitelore-crawler/1.0"
)

// Result holds a fetched document
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Client fetches URLs with a per-request timeout and a fixed User-Agent.
// Redirects are followed; the final URL is reported so the crawler can
// dedupe on it.
type Client struct {
	http      *http.Client
	userAgent string
}

// Config holds fetch client configuration
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// NewClient creates a fetch client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch retrieves the document at url. Non-2xx responses are errors.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}
