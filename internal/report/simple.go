package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/monitor"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without entries are shown.
	showEmpty bool

	// verbose lists every page and appends the performance summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	summary := NewSummary(report)

	w.writeHeader(&sb, summary)
	w.writeSummary(&sb, summary)
	w.writeSkipped(&sb, summary)
	w.writeErrors(&sb, report)
	if w.verbose {
		w.writePages(&sb, report)
		sb.WriteString(monitor.FormatSummary(report.Metrics))
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         DOCSCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:  %s\n", s.StartURL)
	if s.Scope != "" {
		scope := s.Scope
		if s.ScopeWidened {
			scope += " (widened)"
		}
		fmt.Fprintf(sb, "Scope:      %s\n", scope)
	}
	fmt.Fprintf(sb, "Started:    %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(sb, "Result:     %s\n", s.StopMessage)
	sb.WriteString("\n")
}

// writeSummary writes the page counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, s Summary) {
	section(sb, "SUMMARY")

	for _, st := range model.AllPageStatuses() {
		fmt.Fprintf(sb, "  %-10s %s\n", strings.ToUpper(st.String())+":", humanize.Comma(int64(s.StatusCounts[st])))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:     %s pages, %s useful\n", humanize.Comma(int64(s.Pages)), humanize.Comma(int64(s.Useful)))
	fmt.Fprintf(sb, "  EXPANDED:  %d pages\n", s.Expanded)
	fmt.Fprintf(sb, "  FALLBACK:  %d pages\n", s.StaticFallbacks)
	fmt.Fprintf(sb, "  CONTENT:   %s words, %s\n", humanize.Comma(int64(s.TotalWords)), humanize.Bytes(uint64(max(s.TotalBytes, 0))))
	sb.WriteString("\n")
}

// writeSkipped writes skip reasons with their counts.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, s Summary) {
	if len(s.SkipReasons) == 0 && !w.showEmpty {
		return
	}
	section(sb, "SKIPPED")

	if len(s.SkipReasons) == 0 {
		sb.WriteString("  No pages skipped\n\n")
		return
	}
	for _, r := range s.SkipReasons {
		fmt.Fprintf(sb, "  [-] %s: %d\n", r.Reason, r.Count)
	}
	sb.WriteString("\n")
}

// writeErrors writes the pages that could not be crawled.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Errors) == 0 && !w.showEmpty {
		return
	}
	section(sb, "ERRORS")

	if len(report.Errors) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, e := range report.Errors {
		fmt.Fprintf(sb, "  [!] %s\n", e.URL)
		fmt.Fprintf(sb, "      %s (depth %d)\n", e.Error, e.Depth)
	}
	sb.WriteString("\n")
}

// writePages lists every attempted page.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	section(sb, "PAGES")

	for _, p := range report.Pages {
		fmt.Fprintf(sb, "  [%s] %s\n", pageIndicator(p.Status), p.URL)
		switch {
		case p.Skipped:
			fmt.Fprintf(sb, "      skipped: %s\n", p.SkipReason)
		case p.Status.IsFailure():
			fmt.Fprintf(sb, "      %s\n", p.Error)
		default:
			title := p.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(sb, "      %s, %d words, depth %d\n", title, p.WordCount, p.Depth)
		}
	}
	sb.WriteString("\n")
}

// pageIndicator returns a visual indicator for a page status.
func pageIndicator(st model.PageStatus) string {
	switch st {
	case model.StatusOK:
		return "+"
	case model.StatusSkipped:
		return "-"
	case model.StatusFailed:
		return "!"
	case model.StatusTimeout:
		return "T"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by docscrawl\n")
	sb.WriteString("https://github.com/nao1215/docscrawl\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
