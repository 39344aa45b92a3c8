package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// MaxTextSize is the maximum number of characters of main text kept per page.
const MaxTextSize = 50000

// fingerprintTextPrefix is the number of text characters that feed the
// content fingerprint. Portals often render the same article under several
// URLs with different trailing widgets, so only the head of the text counts.
const fingerprintTextPrefix = 1000

// Page is the result of attempting one URL.
// Every dequeued URL produces at most one Page, whether it succeeded,
// was skipped by the quality gate, or failed.
type Page struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// FinalURL is the URL the browser landed on after redirects.
	// Empty when it equals URL.
	FinalURL string `json:"final_url,omitempty"`

	// ParentURL is the page the URL was discovered on. Empty for the start URL.
	ParentURL string `json:"parent_url,omitempty"`

	// Depth is the link distance from the start URL.
	Depth int `json:"depth"`

	// Status is the outcome of the page.
	Status PageStatus `json:"status"`

	// Skipped is true when the quality gate rejected the page.
	// It is kept alongside Status for consumers that only filter on it.
	Skipped bool `json:"skipped"`

	// SkipReason explains why the page was skipped.
	SkipReason string `json:"skip_reason,omitempty"`

	// Error is the navigation or extraction error message, if any.
	Error string `json:"error,omitempty"`

	// Title is the document title, or the first heading when the title is empty.
	Title string `json:"title,omitempty"`

	// Breadcrumb is the trail of ancestor page titles shown by the site.
	Breadcrumb []string `json:"breadcrumb,omitempty"`

	// SectionPath locates the page in the site's navigation tree. Pages that
	// do not show one inherit the section path of the page linking to them.
	SectionPath []string `json:"section_path,omitempty"`

	// Headings maps heading levels ("h1".."h6") to their texts in document order.
	Headings map[string][]string `json:"headings,omitempty"`

	// Text is the main content text with whitespace collapsed.
	// Limited to MaxTextSize characters.
	Text string `json:"text,omitempty"`

	// Tables contains the page's tables as rows of cell texts.
	Tables []Table `json:"tables,omitempty"`

	// CodeBlocks contains the text of <pre> blocks.
	CodeBlocks []string `json:"code_blocks,omitempty"`

	// Links are the canonical in-scope URLs discovered on the page.
	Links []string `json:"links,omitempty"`

	// WordCount is the number of whitespace-separated words in Text.
	WordCount int `json:"word_count"`

	// Bytes is the size of the response as reported by the browser.
	Bytes int64 `json:"bytes,omitempty"`

	// Complexity is "js" when the page needed interaction, "html" otherwise.
	Complexity string `json:"complexity,omitempty"`

	// MeaningfulClicks and ClicksAttempted summarize page expansion.
	MeaningfulClicks int `json:"meaningful_clicks,omitempty"`
	ClicksAttempted  int `json:"clicks_attempted,omitempty"`

	// StaticFallback is true when the content came from a plain HTTP fetch
	// after the browser failed.
	StaticFallback bool `json:"static_fallback,omitempty"`

	// Fingerprint identifies near-duplicate content. See ContentFingerprint.
	Fingerprint string `json:"fingerprint,omitempty"`

	// FetchedAt is when processing of the page finished.
	FetchedAt time.Time `json:"fetched_at"`
}

// Table is a table of cell texts, header row first when present.
type Table [][]string

// Skip marks the page as skipped by the quality gate and clears its content.
func (p *Page) Skip(reason string) {
	p.Status = StatusSkipped
	p.Skipped = true
	p.SkipReason = reason
	p.Text = ""
	p.WordCount = 0
}

// Fail marks the page as failed with the given status and message.
func (p *Page) Fail(status PageStatus, message string) {
	p.Status = status
	p.Skipped = false
	p.Error = message
}

// SetText stores text, truncating it to MaxTextSize characters, and
// recomputes WordCount.
func (p *Page) SetText(text string) {
	if r := []rune(text); len(r) > MaxTextSize {
		text = string(r[:MaxTextSize])
	}
	p.Text = text
	p.WordCount = CountWords(text)
}

// ComputeFingerprint calculates and sets the content fingerprint.
// It should be called after Title and Text are set.
func (p *Page) ComputeFingerprint(path string) {
	p.Fingerprint = ContentFingerprint(p.Title, p.Text, path)
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ContentFingerprint returns a SHA3-256 hex digest of the title, the first
// characters of the text, and the URL path. Two pages with the same
// fingerprint are treated as duplicates of each other.
func ContentFingerprint(title, text, path string) string {
	if r := []rune(text); len(r) > fingerprintTextPrefix {
		text = string(r[:fingerprintTextPrefix])
	}
	sum := sha3.Sum256([]byte(title + "|" + text + "|" + path))
	return hex.EncodeToString(sum[:])
}

// PageError records a URL that could not be crawled.
type PageError struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// Error is a short message, "Timeout" for navigation timeouts.
	Error string `json:"error"`

	// Depth is the link distance from the start URL.
	Depth int `json:"depth"`
}
