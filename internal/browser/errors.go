package browser

import "errors"

var (
	// ErrNavigationTimeout is returned when a navigation exceeds its timeout.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrElementDetached is returned when an element handle no longer
	// resolves to a node in the document.
	ErrElementDetached = errors.New("element detached from document")

	// ErrClosed is returned by operations on a closed page or browser.
	ErrClosed = errors.New("browser closed")
)
