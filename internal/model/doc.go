// Package model defines the core data structures used throughout docscrawl.
//
// This package contains the following main types:
//   - Page: one attempted URL and everything extracted from it
//   - PageStatus: the outcome of a page (ok, skipped, failed, timeout)
//   - CrawlReport: the result of one crawl run
//   - CrawlMetrics: a point-in-time snapshot of crawl performance
//   - StopReason: why a crawl terminated
//
// The models live in their own package so that the crawler, monitor,
// database and report packages can share them without import cycles.
// They are serializable to JSON for report output and database storage.
package model
