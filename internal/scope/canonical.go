package scope

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// CanonicalURL is the normalized form of a crawl target.
// Two URLs name the same page exactly when their canonical values are equal,
// so CanonicalURL is usable as a map key.
type CanonicalURL struct {
	// Scheme is "http" or "https".
	Scheme string
	// Host is the lower-cased host without "www." and without a default port.
	Host string
	// Path always starts with "/" and never ends with "/" unless it is the root.
	Path string
	// Query is the raw query string without the leading "?". It may be empty.
	Query string
}

// String returns the canonical string form scheme://host/path[?query].
func (c CanonicalURL) String() string {
	if c.IsZero() {
		return ""
	}
	s := c.Scheme + "://" + c.Host + c.Path
	if c.Query != "" {
		s += "?" + c.Query
	}
	return s
}

// IsZero reports whether c is the zero value.
func (c CanonicalURL) IsZero() bool {
	return c == CanonicalURL{}
}

// rejectedPrefixes are link targets that never name a page.
var rejectedPrefixes = []string{"javascript:", "mailto:", "tel:", "data:", "#"}

// percentEscape matches a single percent-encoded octet.
var percentEscape = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)

// Canonicalize reduces raw to its canonical form.
// When stripQuery is true the query string is dropped. The fragment is always
// dropped. Canonicalize is idempotent: canonicalizing the String() of a
// result yields the same value.
func Canonicalize(raw string, stripQuery bool) (CanonicalURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CanonicalURL{}, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	lower := strings.ToLower(raw)
	for _, prefix := range rejectedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return CanonicalURL{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, prefix)
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return CanonicalURL{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	if u.Host == "" {
		return CanonicalURL{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	c := CanonicalURL{
		Scheme: scheme,
		Host:   canonicalHost(scheme, u.Host),
		Path:   canonicalPath(u.EscapedPath()),
	}
	if c.Host == "" {
		return CanonicalURL{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if !stripQuery {
		c.Query = u.RawQuery
	}
	return c, nil
}

// MustCanonicalize is like Canonicalize but panics on error.
// It is intended for constants in tests and tables.
func MustCanonicalize(raw string) CanonicalURL {
	c, err := Canonicalize(raw, false)
	if err != nil {
		panic(err)
	}
	return c
}

func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return strings.TrimPrefix(host, "www.")
}

func canonicalPath(escaped string) string {
	if escaped == "" {
		return "/"
	}

	p := percentEscape.ReplaceAllStringFunc(escaped, func(esc string) string {
		b, err := url.PathUnescape(esc)
		if err == nil && len(b) == 1 && isUnreserved(b[0]) {
			return b
		}
		return strings.ToUpper(esc)
	})

	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// isUnreserved reports whether c is an RFC 3986 unreserved character.
func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
