package model

import "time"

// CrawlMetrics is a point-in-time snapshot of crawl performance.
// It is a plain value; every snapshot is an independent copy.
type CrawlMetrics struct {
	PagesCrawled    int   `json:"pages_crawled"`
	PagesSkipped    int   `json:"pages_skipped"`
	PagesFailed     int   `json:"pages_failed"`
	PagesRetried    int   `json:"pages_retried"`
	TotalEnqueued   int   `json:"total_enqueued"`
	QueueSize       int   `json:"queue_size"`
	QueuePeak       int   `json:"queue_peak"`
	ActiveWorkers   int   `json:"active_workers"`
	MaxWorkers      int   `json:"max_workers"`
	LinksFound      int   `json:"links_discovered"`
	TotalWords      int   `json:"total_words"`
	AvgWordsPerPage int   `json:"avg_words_per_page"`
	TotalBytes      int64 `json:"total_bytes"`

	// PagesPerSecondRolling is the completion rate over RollingWindow.
	PagesPerSecondRolling float64       `json:"pages_per_second_rolling"`
	RollingWindow         time.Duration `json:"rolling_window"`

	// PagesPerSecondOverall is crawled pages divided by elapsed time.
	PagesPerSecondOverall float64 `json:"pages_per_second_overall"`

	AvgPageTime     time.Duration `json:"avg_page_time"`
	AvgNavigateTime time.Duration `json:"avg_navigate_time"`
	AvgExtractTime  time.Duration `json:"avg_extract_time"`
	P95PageTime     time.Duration `json:"p95_page_time"`

	Elapsed    time.Duration `json:"elapsed"`
	StopReason string        `json:"stop_reason,omitempty"`
}
