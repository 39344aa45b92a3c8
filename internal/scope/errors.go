package scope

import "errors"

var (
	// ErrInvalidURL is returned for empty, unparsable or host-less URLs.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme is returned for pseudo-schemes such as javascript:
	// and mailto:, bare fragments, and any scheme other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)
