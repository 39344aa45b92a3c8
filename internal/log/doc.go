// Package log builds slog loggers that keep credentials out of crawl logs.
//
// Portals behind a login are crawled with session cookies and custom
// headers, and signed attachment links carry tokens in their query strings.
// SecureHandler masks them before the record reaches the output handler:
//   - attributes whose key names a secret (Cookie, Authorization, token, ...)
//   - values that look like secrets (JWTs, bearer tokens, long opaque keys)
//   - sensitive query parameters of URLs, also inside messages and errors
//   - sensitive entries of header maps
//
// Masking applies at every level, verbose included.
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	logger.Warn("navigation failed",
//	    "url", "https://docs.example.com/a?token=abc123", // token=***REDACTED***
//	    "headers", cfg.Headers,                           // Authorization: ***REDACTED***
//	)
package log
