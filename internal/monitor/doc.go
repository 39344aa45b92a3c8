// Package monitor tracks crawl throughput and latency.
//
// A Monitor receives one PageTiming per processed page together with queue,
// worker and byte counters, and produces CrawlMetrics snapshots on demand.
// Throughput is reported both overall and over a rolling window so that a
// slow start does not hide a healthy steady state. Run logs a progress line
// periodically; FormatSummary renders the final table printed after a crawl.
//
// All methods are safe for concurrent use.
package monitor
