package model

import "fmt"

// StopKind classifies why a crawl terminated.
type StopKind int

const (
	// StopCompleted means the frontier was exhausted.
	StopCompleted StopKind = iota

	// StopMaxPages means the page budget was reached.
	StopMaxPages

	// StopUser means the caller requested a stop.
	StopUser

	// StopError means a whole-crawl fault ended the run,
	// for example the browser could not be started.
	StopError
)

// String returns the completion status name.
func (k StopKind) String() string {
	switch k {
	case StopCompleted:
		return "completed"
	case StopMaxPages:
		return "max pages reached"
	case StopUser:
		return "user stop"
	case StopError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k StopKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StopKind) UnmarshalText(text []byte) error {
	for _, candidate := range []StopKind{StopCompleted, StopMaxPages, StopUser, StopError} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown stop kind %q", string(text))
}

// StopReason is the terminal state of a crawl with a human-readable message.
type StopReason struct {
	Kind    StopKind `json:"kind"`
	Message string   `json:"message"`
}

// String returns the message, or the kind name when the message is empty.
func (s StopReason) String() string {
	if s.Message != "" {
		return s.Message
	}
	return s.Kind.String()
}

// StopCompletedReason describes a crawl whose frontier ran dry.
func StopCompletedReason(useful, skipped, requested int) StopReason {
	return StopReason{
		Kind:    StopCompleted,
		Message: fmt.Sprintf("Queue exhausted: only %d useful pages found on this site (skipped %d, requested %d)", useful, skipped, requested),
	}
}

// StopMaxPagesReason describes a crawl that reached its page budget.
func StopMaxPagesReason(maxPages int) StopReason {
	return StopReason{
		Kind:    StopMaxPages,
		Message: fmt.Sprintf("MAX_PAGES limit reached (%d)", maxPages),
	}
}

// StopUserReason describes a crawl stopped by the caller.
func StopUserReason() StopReason {
	return StopReason{Kind: StopUser, Message: "User requested stop"}
}

// StopErrorReason describes a crawl ended by a whole-crawl fault.
func StopErrorReason(err error) StopReason {
	return StopReason{Kind: StopError, Message: "Error: " + err.Error()}
}
