package model

import (
	"fmt"
	"strings"
)

// PageStatus is the outcome of processing one URL.
type PageStatus int

const (
	// StatusOK indicates the page was rendered and passed the quality gate.
	StatusOK PageStatus = iota

	// StatusSkipped indicates the page was fetched but rejected as useless:
	// loading screens, cookie walls, raw JSON, near-duplicates and non-HTML
	// responses. Skipped pages do not count against the page budget.
	StatusSkipped

	// StatusFailed indicates navigation failed and no fallback recovered it.
	StatusFailed

	// StatusTimeout indicates navigation exceeded the per-page timeout and
	// no fallback recovered it.
	StatusTimeout
)

// String returns the lower-case name of the status.
func (s PageStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// IsFailure reports whether s is failed or timeout.
func (s PageStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusTimeout
}

// MarshalText implements encoding.TextMarshaler so the status is written
// as its name in JSON reports and database rows.
func (s PageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PageStatus) UnmarshalText(text []byte) error {
	parsed, err := ParsePageStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParsePageStatus parses a status name as produced by String.
func ParsePageStatus(name string) (PageStatus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ok":
		return StatusOK, nil
	case "skipped":
		return StatusSkipped, nil
	case "failed":
		return StatusFailed, nil
	case "timeout":
		return StatusTimeout, nil
	default:
		return StatusOK, fmt.Errorf("unknown page status %q", name)
	}
}

// AllPageStatuses returns every status in display order.
func AllPageStatuses() []PageStatus {
	return []PageStatus{StatusOK, StatusSkipped, StatusFailed, StatusTimeout}
}
