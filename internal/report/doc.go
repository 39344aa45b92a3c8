// Package report writes crawl reports.
//
// Three formats are available:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: the report as JSON for other tools
//   - MarkdownWriter: a Markdown document with a status pie chart
//
// NewWriter picks the writer for a Format; all of them implement Writer.
// Summary condenses a report into the counts every format shows.
package report
