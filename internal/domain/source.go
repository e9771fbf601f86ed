package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CrawlStatus represents the state of a crawl job for a source
type CrawlStatus string

const (
	CrawlStatusQueued              CrawlStatus = "queued"
	CrawlStatusRunning             CrawlStatus = "running"
	CrawlStatusCompleted           CrawlStatus = "completed"
	CrawlStatusCompletedWithErrors CrawlStatus = "completed_with_errors"
	CrawlStatusFailed              CrawlStatus = "failed"
)

// Active reports whether a job in this state is still in flight.
func (s CrawlStatus) Active() bool {
	return s == CrawlStatusQueued || s == CrawlStatusRunning
}

// Source represents a crawled root URL and everything indexed from it
type Source struct {
	URL                string
	Status             CrawlStatus
	PagesIndexed       int
	TotalPagesEstimate int
	Message            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CrawlSnapshot is a read-only view of crawl progress exposed for polling
type CrawlSnapshot struct {
	URL                string
	Status             CrawlStatus
	PagesIndexed       int
	TotalPagesEstimate int
	Message            string
}

// NewSource creates a new Source in the queued state
func NewSource(normalizedURL string, now time.Time) *Source {
	return &Source{
		URL:                normalizedURL,
		Status:             CrawlStatusQueued,
		PagesIndexed:       0,
		TotalPagesEstimate: 1,
		Message:            "crawl queued",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ValidateSource validates a Source instance
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}
	if s.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if !isValidCrawlStatus(s.Status) {
		return fmt.Errorf("source Status is invalid: %s", s.Status)
	}
	if s.PagesIndexed < 0 {
		return fmt.Errorf("source PagesIndexed cannot be negative")
	}
	if s.TotalPagesEstimate < s.PagesIndexed {
		return fmt.Errorf("source TotalPagesEstimate cannot be below PagesIndexed")
	}
	return nil
}

func isValidCrawlStatus(s CrawlStatus) bool {
	switch s {
	case CrawlStatusQueued, CrawlStatusRunning, CrawlStatusCompleted,
		CrawlStatusCompletedWithErrors, CrawlStatusFailed:
		return true
	}
	return false
}

// NormalizeURL canonicalizes a URL for use as a source or page key:
// lowercased scheme and host, fragment stripped, trailing slash on the
// path removed. Returns ErrInvalidURL for non-http(s) or unparsable input.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", NewDomainErrorWithCause(ErrCodeValidation, "invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// SameOrigin reports whether the host of candidate belongs to the root
// host (exact match or subdomain).
func SameOrigin(rootHost, candidateHost string) bool {
	rootHost = strings.ToLower(rootHost)
	candidateHost = strings.ToLower(candidateHost)
	if candidateHost == rootHost {
		return true
	}
	return strings.HasSuffix(candidateHost, "."+rootHost)
}
