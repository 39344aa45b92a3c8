package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigationTimeout means the browser did not finish loading a page
	// within the per-page timeout.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrNavigation means loading a page failed, either in transport or
	// with an HTTP error status.
	ErrNavigation = errors.New("navigation failed")

	// ErrExtraction means content could not be extracted from a loaded page.
	// The page is kept with empty content.
	ErrExtraction = errors.New("content extraction failed")

	// ErrQueueFull means the frontier had no room for a discovered link.
	// The link is dropped and may be rediscovered from another page.
	ErrQueueFull = errors.New("frontier queue full")

	// ErrAlreadyRunning is returned by Crawl while another crawl is running.
	ErrAlreadyRunning = errors.New("crawl already running")

	// ErrNoBrowser is returned by Crawl when the crawler has no browser.
	ErrNoBrowser = errors.New("no browser configured")
)

// StatusError is an HTTP error status returned for a page.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Static is true when the status came from the static fallback fetch.
	Static bool
}

// Error returns "HTTP <code>", with a "(static)" suffix for fallback fetches.
func (e *StatusError) Error() string {
	if e.Static {
		return fmt.Sprintf("HTTP %d (static)", e.Code)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Unwrap makes a StatusError match ErrNavigation.
func (e *StatusError) Unwrap() error {
	return ErrNavigation
}

// errorMessage returns the short message recorded in the error list.
func errorMessage(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrNavigationTimeout):
		return "Timeout"
	case errors.As(err, &se):
		return se.Error()
	default:
		return err.Error()
	}
}
