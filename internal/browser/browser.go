package browser

import (
	"context"
	"time"
)

// Browser opens pages. Implementations must be safe for concurrent use.
type Browser interface {
	// NewPage opens a fresh page (a browser tab).
	NewPage(ctx context.Context) (Page, error)

	// Close releases the browser and every page it opened.
	Close() error
}

// Response describes the main document of a navigation.
type Response struct {
	// Status is the HTTP status code. Zero when the browser did not report one.
	Status int

	// ContentType is the MIME type of the main document, without parameters.
	ContentType string

	// URL is the URL the page landed on after redirects.
	URL string

	// Bytes is the encoded size of the main document.
	Bytes int64
}

// Snapshot is a cheap measurement of the page used to decide whether an
// interaction changed anything.
type Snapshot struct {
	// TextLength is the length of document.body.innerText.
	TextLength int `json:"textLength"`

	// LinkCount is the number of a[href] elements.
	LinkCount int `json:"linkCount"`

	// HeadingCount is the number of h1-h6 elements.
	HeadingCount int `json:"headingCount"`

	// ExpandedCount is the number of [aria-expanded="true"] elements.
	ExpandedCount int `json:"expandedCount"`
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits for the document to load or timeout to expire.
	Navigate(ctx context.Context, url string, timeout time.Duration) (Response, error)

	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)

	// QueryAll returns the elements matching a CSS selector in document order.
	// At most limit elements are returned when limit is positive.
	// An invalid selector yields no elements and no error.
	QueryAll(ctx context.Context, selector string, limit int) ([]Element, error)

	// Count returns the number of elements matching a CSS selector.
	Count(ctx context.Context, selector string) (int, error)

	// Snapshot measures the page.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Evaluate runs a JavaScript expression and decodes its result into out.
	// out may be nil when the result is not needed.
	Evaluate(ctx context.Context, script string, out any) error

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close closes the tab.
	Close() error
}

// ElementInfo describes an element in one round trip.
type ElementInfo struct {
	Tag       string  `json:"tag"`
	ID        string  `json:"id"`
	Class     string  `json:"class"`
	Text      string  `json:"text"`
	Href      string  `json:"href"`
	Role      string  `json:"role"`
	Title     string  `json:"title"`
	AriaLabel string  `json:"ariaLabel"`
	Top       float64 `json:"top"`
	Left      float64 `json:"left"`

	// AriaExpanded is the element's aria-expanded attribute, "" when absent.
	AriaExpanded string `json:"ariaExpanded"`

	// HasAriaExpanded through HasOnclick report the presence of
	// attributes that mark an element as interactive.
	HasAriaExpanded bool `json:"hasAriaExpanded"`
	HasAriaPressed  bool `json:"hasAriaPressed"`
	HasDataToggle   bool `json:"hasDataToggle"`
	HasDataBsToggle bool `json:"hasDataBsToggle"`
	HasOnclick      bool `json:"hasOnclick"`

	// AncestorExpanded is true when the nearest [aria-expanded] or <details>
	// ancestor (the element itself included) is expanded or open.
	AncestorExpanded bool `json:"ancestorExpanded"`
}

// Element is a handle to a DOM element.
type Element interface {
	// Visible reports whether the element is rendered with a non-empty box.
	Visible(ctx context.Context) (bool, error)

	// Describe returns the element's description.
	Describe(ctx context.Context) (ElementInfo, error)

	// Click clicks the element, giving up after timeout.
	Click(ctx context.Context, timeout time.Duration) error

	// Evaluate runs a JavaScript function body with the element bound to el
	// and decodes its result into out.
	Evaluate(ctx context.Context, body string, out any) error
}
