package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlReport is the result of one crawl run.
// It holds every attempted page, the error list, the final performance
// metrics and the reason the crawl stopped.
type CrawlReport struct {
	// ID uniquely identifies the run. It is a random UUID.
	ID string `json:"id"`

	// StartURL is the URL the crawl was started with, as given.
	StartURL string `json:"start_url"`

	// Host is the canonical host of the crawl scope when the crawl ended.
	Host string `json:"host"`

	// Scope describes the final crawl scope, for example
	// "Subtree: docs.example.com/guide/**".
	Scope string `json:"scope"`

	// ScopeWidened is true when the scope grew during the crawl.
	ScopeWidened bool `json:"scope_widened"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages contains one entry per attempted URL in completion order.
	Pages []Page `json:"pages"`

	// Errors lists URLs that could not be crawled.
	Errors []PageError `json:"errors,omitempty"`

	// Metrics is the final performance snapshot.
	Metrics CrawlMetrics `json:"metrics"`

	// StopReason explains why the crawl terminated.
	StopReason StopReason `json:"stop_reason"`
}

// NewCrawlReport creates an empty report for startURL with a fresh ID.
func NewCrawlReport(startURL string) *CrawlReport {
	return &CrawlReport{
		ID:        uuid.NewString(),
		StartURL:  startURL,
		StartedAt: time.Now(),
		Pages:     make([]Page, 0),
	}
}

// Duration returns the wall-clock duration of the run.
// It is zero while the run has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByStatus returns the number of pages with status s.
func (r *CrawlReport) CountByStatus(s PageStatus) int {
	n := 0
	for i := range r.Pages {
		if r.Pages[i].Status == s {
			n++
		}
	}
	return n
}

// UsefulPages returns the number of pages that count against the page
// budget, that is every page that was not skipped.
func (r *CrawlReport) UsefulPages() int {
	n := 0
	for i := range r.Pages {
		if !r.Pages[i].Skipped {
			n++
		}
	}
	return n
}

// GetPage returns the page with the given canonical URL, or nil.
func (r *CrawlReport) GetPage(url string) *Page {
	for i := range r.Pages {
		if r.Pages[i].URL == url {
			return &r.Pages[i]
		}
	}
	return nil
}

// OKPages returns the pages with status ok.
func (r *CrawlReport) OKPages() []Page {
	out := make([]Page, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Status == StatusOK {
			out = append(out, p)
		}
	}
	return out
}
