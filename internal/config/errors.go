package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Callers can use
// errors.Is() for programmatic handling.
var (
	// ErrNoTarget is returned when no start URL is specified.
	ErrNoTarget = errors.New("no target specified: provide the documentation root URL")

	// ErrInvalidTimeout is returned when the per-page timeout is not positive.
	// A timeout of zero would fail every navigation immediately.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the maximum link depth is negative.
	// Use 0 to crawl only the start URL.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidCrawlDelay is returned when the inter-page delay is negative.
	// A negative delay is invalid; use 0 for no delay between pages.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxClicks is returned when the per-page click budget is negative.
	ErrInvalidMaxClicks = errors.New("invalid max clicks: must be non-negative")

	// ErrInvalidExpansionTime is returned when the per-page expansion time budget is negative.
	ErrInvalidExpansionTime = errors.New("invalid expansion time: must be non-negative")

	// ErrInvalidQueueCapacity is returned when the frontier capacity is not positive.
	ErrInvalidQueueCapacity = errors.New("invalid queue capacity: must be positive")

	// ErrInvalidMaxRetries is returned when the retry count is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRateLimit is returned when the request rate is negative.
	// Use 0 to disable the politeness rate limiter.
	ErrInvalidRateLimit = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidParallel is returned when the number of concurrent sites is not positive.
	ErrInvalidParallel = errors.New("invalid parallel: must be positive")

	// ErrInvalidSiteConfig is returned by LoadConfigFile for a site entry
	// that cannot be used: an empty or duplicate host key, or a deny
	// pattern that does not compile.
	ErrInvalidSiteConfig = errors.New("invalid site configuration")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
