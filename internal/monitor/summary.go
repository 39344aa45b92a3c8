package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/docscrawl/internal/model"
)

const summaryWidth = 65

// FormatSummary renders m as the boxed table printed after a crawl.
func FormatSummary(m model.CrawlMetrics) string {
	p := message.NewPrinter(language.English)
	rule := strings.Repeat("=", summaryWidth)
	thin := strings.Repeat("-", summaryWidth)

	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %-38s %s\n", label+":", value)
	}

	b.WriteString(rule + "\n")
	b.WriteString("  CRAWL PERFORMANCE SUMMARY\n")
	b.WriteString(rule + "\n")

	row("Pages crawled", p.Sprintf("%d", m.PagesCrawled))
	row("Pages skipped (empty/cookie/loading)", p.Sprintf("%d", m.PagesSkipped))
	row("Pages failed", p.Sprintf("%d", m.PagesFailed))
	row("Pages retried", p.Sprintf("%d", m.PagesRetried))
	row("Total enqueued", p.Sprintf("%d", m.TotalEnqueued))
	b.WriteString(thin + "\n")

	row("Overall speed", fmt.Sprintf("%.2f pages/sec", m.PagesPerSecondOverall))
	row(rollingLabel(m.RollingWindow), fmt.Sprintf("%.2f pages/sec", m.PagesPerSecondRolling))
	row("Avg page time", formatDuration(m.AvgPageTime))
	row("Avg navigate time", formatDuration(m.AvgNavigateTime))
	row("Avg extract time", formatDuration(m.AvgExtractTime))
	row("P95 page time", formatDuration(m.P95PageTime))
	b.WriteString(thin + "\n")

	row("Queue peak", p.Sprintf("%d", m.QueuePeak))
	row("Workers", p.Sprintf("%d", m.MaxWorkers))
	row("Links discovered", p.Sprintf("%d", m.LinksFound))
	b.WriteString(thin + "\n")

	row("Total words", p.Sprintf("%d", m.TotalWords))
	row("Avg words/page", p.Sprintf("%d", m.AvgWordsPerPage))
	row("Total bytes", humanize.Bytes(uint64(max(m.TotalBytes, 0))))
	b.WriteString(thin + "\n")

	row("Elapsed", m.Elapsed.Round(100*time.Millisecond).String())
	stop := m.StopReason
	if stop == "" {
		stop = "-"
	}
	row("Stop reason", stop)
	b.WriteString(rule + "\n")

	return b.String()
}

// rollingLabel names the rolling speed row after its window, "30s" or "2m0s".
func rollingLabel(window time.Duration) string {
	if window <= 0 {
		return "Rolling speed"
	}
	return "Rolling speed (" + window.Round(time.Second).String() + ")"
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
