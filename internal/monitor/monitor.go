package monitor

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/docscrawl/internal/model"
)

const (
	// DefaultWindow is the span of the rolling throughput window.
	DefaultWindow = 30 * time.Second

	// DefaultHistory is the number of page timings kept for averages.
	DefaultHistory = 1000
)

// PageTiming records how long each phase of one page took.
type PageTiming struct {
	URL       string
	Navigate  time.Duration
	Extract   time.Duration
	Enqueue   time.Duration
	Total     time.Duration
	WordCount int
	LinkCount int
	Status    model.PageStatus
}

// Monitor aggregates crawl performance counters.
type Monitor struct {
	mu sync.Mutex

	window     time.Duration
	history    int
	maxWorkers int
	now        func() time.Time
	logger     *slog.Logger

	startedAt  time.Time
	stoppedAt  time.Time
	stopReason string

	timings     []PageTiming
	completions []time.Time

	crawled, skipped, failed, retried int
	enqueued, links, words            int
	bytes                             int64
	queueSize, queuePeak              int
	activeWorkers                     int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWindow sets the rolling throughput window.
func WithWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithHistory sets how many page timings are kept for averages.
func WithHistory(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.history = n
		}
	}
}

// WithMaxWorkers records the configured worker count for reporting.
func WithMaxWorkers(n int) Option {
	return func(m *Monitor) {
		m.maxWorkers = n
	}
}

// WithClock replaces time.Now. It is intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used by Run.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Monitor. Call Start when the crawl begins.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		window:  DefaultWindow,
		history: DefaultHistory,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start marks the beginning of the crawl.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = m.now()
	m.stoppedAt = time.Time{}
	m.stopReason = ""
}

// Stop marks the end of the crawl and records why it ended.
func (m *Monitor) Stop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stoppedAt = m.now()
	m.stopReason = reason
}

// RecordPage records the outcome and timing of one page.
func (m *Monitor) RecordPage(t PageTiming) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch t.Status {
	case model.StatusOK:
		m.crawled++
		m.words += t.WordCount
	case model.StatusSkipped:
		m.skipped++
	case model.StatusFailed, model.StatusTimeout:
		m.failed++
	}
	m.links += t.LinkCount

	m.timings = append(m.timings, t)
	if len(m.timings) > m.history {
		m.timings = append(m.timings[:0], m.timings[len(m.timings)-m.history:]...)
	}

	now := m.now()
	m.completions = append(m.completions, now)
	m.pruneCompletions(now)
}

// pruneCompletions drops completion times older than the window.
// The caller must hold m.mu.
func (m *Monitor) pruneCompletions(now time.Time) {
	cutoff := now.Add(-m.window)
	i := 0
	for i < len(m.completions) && m.completions[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.completions = append(m.completions[:0], m.completions[i:]...)
	}
}

// RecordRetry counts one retried page.
func (m *Monitor) RecordRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried++
}

// RecordEnqueue counts n newly enqueued URLs.
func (m *Monitor) RecordEnqueue(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued += n
}

// RecordBytes adds n bytes to the transfer total.
func (m *Monitor) RecordBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}

// UpdateQueueSize records the current frontier size and tracks its peak.
func (m *Monitor) UpdateQueueSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueSize = n
	if n > m.queuePeak {
		m.queuePeak = n
	}
}

// WorkerStarted counts a worker that began processing a page.
func (m *Monitor) WorkerStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeWorkers++
}

// WorkerFinished counts a worker that finished processing a page.
// The active count never drops below zero.
func (m *Monitor) WorkerFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeWorkers > 0 {
		m.activeWorkers--
	}
}

// ActiveWorkers returns the number of workers currently processing a page.
func (m *Monitor) ActiveWorkers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWorkers
}

// Snapshot returns the current metrics.
func (m *Monitor) Snapshot() model.CrawlMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneCompletions(now)

	end := now
	if !m.stoppedAt.IsZero() {
		end = m.stoppedAt
	}
	var elapsed time.Duration
	if !m.startedAt.IsZero() {
		elapsed = end.Sub(m.startedAt)
	}

	snap := model.CrawlMetrics{
		PagesCrawled:  m.crawled,
		PagesSkipped:  m.skipped,
		PagesFailed:   m.failed,
		PagesRetried:  m.retried,
		TotalEnqueued: m.enqueued,
		QueueSize:     m.queueSize,
		QueuePeak:     m.queuePeak,
		ActiveWorkers: m.activeWorkers,
		MaxWorkers:    m.maxWorkers,
		LinksFound:    m.links,
		TotalWords:    m.words,
		TotalBytes:    m.bytes,
		Elapsed:       elapsed.Round(100 * time.Millisecond),
		StopReason:    m.stopReason,
	}

	snap.RollingWindow = m.window
	snap.PagesPerSecondRolling = round2(float64(len(m.completions)) / m.window.Seconds())
	if elapsed > 0 {
		snap.PagesPerSecondOverall = round2(float64(m.crawled) / elapsed.Seconds())
	}
	if m.crawled > 0 {
		snap.AvgWordsPerPage = m.words / m.crawled
	}

	snap.AvgPageTime = averagePositive(m.timings, func(t PageTiming) time.Duration { return t.Total })
	snap.AvgNavigateTime = averagePositive(m.timings, func(t PageTiming) time.Duration { return t.Navigate })
	snap.AvgExtractTime = averagePositive(m.timings, func(t PageTiming) time.Duration { return t.Extract })
	snap.P95PageTime = p95(m.timings)

	return snap
}

// Run logs a progress line every interval until ctx is done.
// If progress is non-nil it receives every snapshot.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, progress func(model.CrawlMetrics)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := m.Snapshot()
			m.logger.Info("crawl progress",
				"crawled", snap.PagesCrawled,
				"skipped", snap.PagesSkipped,
				"failed", snap.PagesFailed,
				"queue", snap.QueueSize,
				"active_workers", snap.ActiveWorkers,
				"pages_per_sec", snap.PagesPerSecondRolling,
				"avg_page_time", snap.AvgPageTime,
				"elapsed", snap.Elapsed,
			)
			if progress != nil {
				progress(snap)
			}
		}
	}
}

// averagePositive averages the positive values selected by field.
func averagePositive(timings []PageTiming, field func(PageTiming) time.Duration) time.Duration {
	var sum time.Duration
	n := 0
	for _, t := range timings {
		if v := field(t); v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return (sum / time.Duration(n)).Round(time.Millisecond)
}

// p95 returns the 95th percentile of the positive page totals.
func p95(timings []PageTiming) time.Duration {
	totals := make([]time.Duration, 0, len(timings))
	for _, t := range timings {
		if t.Total > 0 {
			totals = append(totals, t.Total)
		}
	}
	if len(totals) == 0 {
		return 0
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i] < totals[j] })
	idx := int(float64(len(totals)) * 0.95)
	if idx > len(totals)-1 {
		idx = len(totals) - 1
	}
	return totals[idx].Round(time.Millisecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
