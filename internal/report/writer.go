package report

import (
	"io"

	"github.com/nao1215/docscrawl/internal/model"
)

// Writer writes crawl reports in one format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// Format selects the report format.
type Format int

const (
	// FormatText is the terminal report written by SimpleWriter.
	FormatText Format = iota
	// FormatJSON is the versioned document written by FullJSONWriter.
	FormatJSON
	// FormatMarkdown is the document written by MarkdownWriter.
	FormatMarkdown
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "markdown"
	default:
		return "text"
	}
}

// FormatFor maps the --json and --markdown switches to a format.
// The caller rejects both being set.
func FormatFor(json, markdown bool) Format {
	switch {
	case json:
		return FormatJSON
	case markdown:
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Options tune the writer returned by NewWriter. Each field only affects
// the formats it names.
type Options struct {
	// Version is stamped into JSON reports.
	Version string

	// Pretty indents JSON. Without it every report is one line.
	Pretty bool

	// OmitContent leaves page bodies out of JSON reports.
	OmitContent bool

	// Verbose lists every page in text reports.
	Verbose bool
}

// NewWriter returns the writer for format f.
func NewWriter(f Format, output io.Writer, opts Options) Writer {
	switch f {
	case FormatJSON:
		var jsonOpts []JSONWriterOption
		if opts.Pretty {
			jsonOpts = append(jsonOpts, WithPrettyPrint())
		}
		if opts.OmitContent {
			jsonOpts = append(jsonOpts, WithoutContent())
		}
		return NewFullJSONWriter(output, opts.Version, jsonOpts...)
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output, WithVerbose(opts.Verbose))
	}
}

// baseWriter holds the output shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
