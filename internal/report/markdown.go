package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/docscrawl/internal/model"
)

// MarkdownWriter outputs reports as Markdown for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// maxRows limits the rows of the page table. Zero lists every page.
	maxRows int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxRows limits the number of pages listed in the page table.
func WithMaxRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxRows = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, summary)
	w.writeSummary(md, summary)
	w.writePages(md, report)
	w.writeSkipped(md, summary)
	w.writeErrors(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	scope := s.Scope
	if s.ScopeWidened {
		scope += " (widened)"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Scope", cell(scope)},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(time.Second).String()},
			{"Result", cell(s.StopMessage)},
		},
	})
	md.PlainText("")
}

// writeSummary writes page counts, the status chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := make([][]string, 0, 8)
	for _, st := range model.AllPageStatuses() {
		rows = append(rows, []string{statusLabel(st), strconv.Itoa(s.StatusCounts[st])})
	}
	rows = append(rows,
		[]string{"Expanded pages", strconv.Itoa(s.Expanded)},
		[]string{"Static fallbacks", strconv.Itoa(s.StaticFallbacks)},
		[]string{"Words", humanize.Comma(int64(s.TotalWords))},
		[]string{"**Total pages**", "**" + strconv.Itoa(s.Pages) + "**"},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Pages > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of page statuses.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, st := range model.AllPageStatuses() {
		if n := s.StatusCounts[st]; n > 0 {
			chart.LabelAndIntValue(statusLabel(st), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the crawl ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s Summary) {
	switch {
	case s.StopKind == model.StopError:
		md.Cautionf("The crawl could not run: %s", s.StopMessage)
	case s.Failed() > 0:
		md.Warningf("%d page(s) could not be loaded. See the errors section.", s.Failed())
	case s.StopKind == model.StopUser:
		md.Importantf("The crawl was stopped early. %d useful page(s) were collected.", s.Useful)
	case s.StopKind == model.StopMaxPages:
		md.Note("The page budget was reached; the site may have more pages.")
	default:
		md.Tip("Every reachable page in scope was crawled.")
	}
	md.PlainText("")
}

// writePages writes the table of useful pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	pages := report.OKPages()
	if len(pages) == 0 {
		md.PlainText("No pages with content were found.")
		md.PlainText("")
		return
	}

	shown := pages
	if w.maxRows > 0 && len(shown) > w.maxRows {
		shown = shown[:w.maxRows]
	}
	rows := make([][]string, len(shown))
	for i, p := range shown {
		title := p.Title
		if title == "" {
			title = "-"
		}
		section := strings.Join(p.SectionPath, " > ")
		if section == "" {
			section = "-"
		}
		rows[i] = []string{
			cell(truncateString(title, 60)),
			"`" + truncateString(p.URL, 80) + "`",
			cell(truncateString(section, 50)),
			strconv.Itoa(p.Depth),
			strconv.Itoa(p.WordCount),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Title", "URL", "Section", "Depth", "Words"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(shown) < len(pages) {
		md.PlainTextf("*%d more page(s) not listed.*", len(pages)-len(shown))
		md.PlainText("")
	}
}

// writeSkipped writes the skip reasons.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, s Summary) {
	if len(s.SkipReasons) == 0 {
		return
	}
	md.H2("Skipped Pages")
	md.PlainText("")

	items := make([]string, len(s.SkipReasons))
	for i, r := range s.SkipReasons {
		items[i] = r.Reason + ": " + strconv.Itoa(r.Count)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeErrors writes the pages that could not be crawled.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Errors) == 0 {
		return
	}
	md.H2("Errors")
	md.PlainText("")

	rows := make([][]string, len(report.Errors))
	for i, e := range report.Errors {
		rows[i] = []string{
			"`" + truncateString(e.URL, 80) + "`",
			cell(truncateString(e.Error, 60)),
			strconv.Itoa(e.Depth),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error", "Depth"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [docscrawl](https://github.com/nao1215/docscrawl)*")
}

// cell escapes the table separator.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
