package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/docscrawl/internal/model"
)

// JSONWriter writes one JSON document per report. Without indentation each
// document is a single line, so several reports form a JSON Lines stream.
type JSONWriter struct {
	baseWriter

	// indent is the per-level indentation; empty means compact output.
	indent string

	// omitContent drops extracted page bodies and keeps only the crawl
	// structure (URLs, statuses, titles, links, counts).
	omitContent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent pretty-prints each document using indent per level.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("  ")
}

// WithoutContent omits page text, headings, tables and code blocks.
func WithoutContent() JSONWriterOption {
	return func(w *JSONWriter) {
		w.omitContent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.encode(w.prepare(report))
}

// WriteSummary outputs only the summary of the report.
func (w *JSONWriter) WriteSummary(report *model.CrawlReport) (int, error) {
	return w.encode(NewSummary(report))
}

// prepare returns the report to encode. The caller's report is never
// modified; other pipeline steps may still hold it.
func (w *JSONWriter) prepare(report *model.CrawlReport) *model.CrawlReport {
	if !w.omitContent || report == nil {
		return report
	}
	stripped := *report
	stripped.Pages = make([]model.Page, len(report.Pages))
	for i, p := range report.Pages {
		p.Text = ""
		p.Headings = nil
		p.Tables = nil
		p.CodeBlocks = nil
		stripped.Pages[i] = p
	}
	return &stripped
}

// encode writes v followed by a newline. URLs are written verbatim:
// HTML escaping would turn every "&" of a query string into \u0026.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the document written by FullJSONWriter.
type JSONReport struct {
	// Version is the docscrawl version that generated this report.
	Version string `json:"version"`

	// Summary repeats the headline numbers so that consumers need not walk
	// the page list.
	Summary Summary `json:"summary"`

	Report *model.CrawlReport `json:"report"`
}

// NewJSONReport wraps report with version and summary.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}

// FullJSONWriter writes reports wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a FullJSONWriter stamping reports with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the wrapped report.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.encode(NewJSONReport(w.prepare(report), w.version))
}
