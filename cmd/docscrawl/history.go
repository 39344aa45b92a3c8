package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/docscrawl/internal/config"
	"github.com/nao1215/docscrawl/internal/database"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/report"
	"github.com/nao1215/docscrawl/internal/scope"
)

// NewHistoryCmd creates the history command.
// It lists, shows, compares and deletes crawls stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Inspect and compare past crawls",
		Long: `History reads the crawl results stored by 'docscrawl crawl'.

Without flags it lists the stored runs, newest first. With --compare it shows
how the latest crawl of a host differs from the previous one:
- Pages that appeared since the previous crawl
- Pages that disappeared
- Pages whose status changed (for example ok to failed)

Examples:
  # List every crawled host
  docscrawl history --sites

  # List the runs of a host
  docscrawl history docs.example.com

  # Compare the latest two runs of a host
  docscrawl history --compare docs.example.com

  # Compare the latest run with run 5
  docscrawl history --compare --with-run-id 5 docs.example.com

  # Print a stored report as Markdown
  docscrawl history --show 7 --markdown

  # Delete a run
  docscrawl history --delete 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("sites", "L", false,
		"List all crawled hosts in the database")
	cmd.Flags().BoolP("compare", "C", false,
		"Compare the latest run of the host with an earlier run")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (default: the previous run)")
	cmd.Flags().Int64("show", 0,
		"Print the stored report of a run")
	cmd.Flags().Int64("delete", 0,
		"Delete a run from the database")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	host      string
	sites     bool
	compare   bool
	withRunID int64
	showID    int64
	deleteID  int64
	json      bool
	markdown  bool
}

// parseHistoryOptions reads and validates the flags before the database
// is opened.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.sites, err = flags.GetBool("sites"); err != nil {
		return opts, err
	}
	if opts.compare, err = flags.GetBool("compare"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return opts, err
	}
	if opts.showID, err = flags.GetInt64("show"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = flags.GetInt64("delete"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}

	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	if opts.withRunID != 0 && !opts.compare {
		return opts, errors.New("--with-run-id requires --compare")
	}

	if len(args) > 0 {
		if opts.host, err = normalizeHost(args[0]); err != nil {
			return opts, err
		}
	}
	if opts.compare && opts.host == "" {
		return opts, errors.New("host is required for --compare (use --sites to see crawled hosts)")
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, opts, cmd.OutOrStdout())
}

// runHistory dispatches to the selected history action.
func runHistory(ctx context.Context, db *database.CrawlDB, opts historyOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.sites:
		return listSites(ctx, db, w)
	case opts.deleteID > 0:
		return deleteRun(ctx, db, opts.deleteID, w)
	case opts.showID > 0:
		return showRun(ctx, db, opts, w)
	case opts.compare:
		return compareRuns(ctx, db, opts, w)
	default:
		return listRuns(ctx, db, opts.host, w)
	}
}

// normalizeHost reduces a host or URL argument to the host form stored in
// the database.
func normalizeHost(arg string) (string, error) {
	raw := strings.TrimSpace(arg)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	c, err := scope.Canonicalize(raw, true)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", arg, err)
	}
	return c.Host, nil
}

// listSites lists all hosts that have runs in the database.
func listSites(ctx context.Context, db *database.CrawlDB, w io.Writer) error {
	hosts, err := db.ListCrawledSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(hosts) == 0 {
		fmt.Fprintln(w, "No crawled sites found in the database.")
		fmt.Fprintln(w, "\nUse 'docscrawl crawl <url>' to crawl a documentation site.")
		return nil
	}

	fmt.Fprintf(w, "Crawled sites (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(w, "  • %s\n", host)
	}
	fmt.Fprintln(w, "\nUse 'docscrawl history <host>' to see the runs of a site.")
	return nil
}

// listRuns lists the runs of host, or of every host when host is empty.
func listRuns(ctx context.Context, db *database.CrawlDB, host string, w io.Writer) error {
	runs, err := db.GetCrawlHistory(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	target := host
	if target == "" {
		target = "all sites"
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "No crawl history found for %s\n", target)
		return nil
	}

	fmt.Fprintf(w, "Crawl history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(w, "  %-6s  %-19s  %-24s  %-8s  %s\n", "ID", "Date", "Host", "Duration", "Pages (useful/skipped/failed)")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 90))
	for _, run := range runs {
		fmt.Fprintf(w, "  %-6d  %-19s  %-24s  %-8s  %d/%d/%d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Host,
			run.Duration().Round(time.Second),
			run.UsefulPages,
			run.SkippedPages,
			run.FailedPages,
			run.StopKind,
		)
	}

	fmt.Fprintln(w, "\nUse 'docscrawl history --compare <host>' to compare the latest two runs.")
	fmt.Fprintln(w, "Use 'docscrawl history --show <id>' to print a stored report.")
	return nil
}

// deleteRun removes a run from the database.
func deleteRun(ctx context.Context, db *database.CrawlDB, id int64, w io.Writer) error {
	deleted, err := db.DeleteCrawlRun(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("run with ID %d not found", id)
	}
	fmt.Fprintf(w, "Deleted run %d\n", id)
	return nil
}

// showRun writes a stored report in the selected format.
func showRun(ctx context.Context, db *database.CrawlDB, opts historyOptions, w io.Writer) error {
	rep, err := db.GetCrawlReportByID(ctx, opts.showID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", opts.showID, err)
	}
	if rep == nil {
		return fmt.Errorf("run with ID %d not found", opts.showID)
	}

	writer := report.NewWriter(report.FormatFor(opts.json, opts.markdown), w, report.Options{
		Version: getVersion(),
		Pretty:  true,
		Verbose: true,
	})
	_, err = writer.Write(rep)
	return err
}

// RunSummary describes one side of a comparison.
type RunSummary struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	StopKind     string    `json:"stop_kind"`
	UsefulPages  int       `json:"useful_pages"`
	SkippedPages int       `json:"skipped_pages"`
	FailedPages  int       `json:"failed_pages"`
}

// StatusChange is a page whose status differs between two runs.
type StatusChange struct {
	URL      string           `json:"url"`
	Previous model.PageStatus `json:"previous"`
	Current  model.PageStatus `json:"current"`
}

// Comparison holds the differences between two runs of the same host.
type Comparison struct {
	Host     string     `json:"host"`
	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// Added are pages only the current run found.
	Added []string `json:"added,omitempty"`

	// Removed are pages only the previous run found.
	Removed []string `json:"removed,omitempty"`

	Changed   []StatusChange `json:"changed,omitempty"`
	Unchanged int            `json:"unchanged"`
}

// compareRuns compares the latest run of the host with an earlier one.
func compareRuns(ctx context.Context, db *database.CrawlDB, opts historyOptions, w io.Writer) error {
	runs, err := db.GetCrawlHistory(ctx, opts.host)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no crawl history found for %s", opts.host)
	}

	current := runs[0]
	var previous *database.CrawlRunMetadata
	if opts.withRunID > 0 {
		for i := range runs {
			if runs[i].ID == opts.withRunID {
				previous = &runs[i]
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("run %d not found for %s", opts.withRunID, opts.host)
		}
		if previous.ID == current.ID {
			return fmt.Errorf("run %d is the latest run; choose an earlier one", opts.withRunID)
		}
	} else {
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previous = &runs[1]
	}

	prevPages, err := db.PageStatuses(ctx, previous.ID)
	if err != nil {
		return err
	}
	curPages, err := db.PageStatuses(ctx, current.ID)
	if err != nil {
		return err
	}

	cmp := comparePages(*previous, current, prevPages, curPages)
	switch {
	case opts.json:
		return outputComparisonJSON(w, cmp)
	case opts.markdown:
		return outputComparisonMarkdown(w, cmp)
	default:
		return outputComparisonText(w, cmp)
	}
}

// comparePages builds the comparison of two runs from their page statuses.
// Skipped pages are compared like any other status.
func comparePages(previous, current database.CrawlRunMetadata, prevPages, curPages map[string]model.PageStatus) *Comparison {
	cmp := &Comparison{
		Host:     current.Host,
		Previous: newRunSummary(previous),
		Current:  newRunSummary(current),
	}

	for url, st := range curPages {
		old, ok := prevPages[url]
		switch {
		case !ok:
			cmp.Added = append(cmp.Added, url)
		case old != st:
			cmp.Changed = append(cmp.Changed, StatusChange{URL: url, Previous: old, Current: st})
		default:
			cmp.Unchanged++
		}
	}
	for url := range prevPages {
		if _, ok := curPages[url]; !ok {
			cmp.Removed = append(cmp.Removed, url)
		}
	}

	sort.Strings(cmp.Added)
	sort.Strings(cmp.Removed)
	sort.Slice(cmp.Changed, func(i, j int) bool {
		return cmp.Changed[i].URL < cmp.Changed[j].URL
	})
	return cmp
}

func newRunSummary(m database.CrawlRunMetadata) RunSummary {
	return RunSummary{
		ID:           m.ID,
		StartedAt:    m.StartedAt,
		StopKind:     m.StopKind,
		UsefulPages:  m.UsefulPages,
		SkippedPages: m.SkippedPages,
		FailedPages:  m.FailedPages,
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(w io.Writer, cmp *Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cmp)
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, cmp *Comparison) error {
	fmt.Fprintf(w, "Crawl Comparison: %s\n", cmp.Host)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nPrevious run: #%d  %s\n", cmp.Previous.ID, cmp.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Current run:  #%d  %s\n", cmp.Current.ID, cmp.Current.StartedAt.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "\nPages:")
	fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 45))
	for _, row := range comparisonRows(cmp) {
		fmt.Fprintf(w, "  %-10s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}

	if len(cmp.Added) > 0 {
		fmt.Fprintf(w, "\nNew pages (%d):\n", len(cmp.Added))
		for _, url := range cmp.Added {
			fmt.Fprintf(w, "  [+] %s\n", url)
		}
	}
	if len(cmp.Removed) > 0 {
		fmt.Fprintf(w, "\nRemoved pages (%d):\n", len(cmp.Removed))
		for _, url := range cmp.Removed {
			fmt.Fprintf(w, "  [-] %s\n", url)
		}
	}
	if len(cmp.Changed) > 0 {
		fmt.Fprintf(w, "\nStatus changes (%d):\n", len(cmp.Changed))
		for _, c := range cmp.Changed {
			fmt.Fprintf(w, "  [~] %s: %s -> %s\n", c.URL, c.Previous, c.Current)
		}
	}

	fmt.Fprintf(w, "\nUnchanged: %s pages\n", humanize.Comma(int64(cmp.Unchanged)))
	return nil
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, cmp *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Comparison: " + cmp.Host)
	md.PlainText("")
	md.PlainTextf("Run #%d (%s) compared with run #%d (%s).",
		cmp.Current.ID, cmp.Current.StartedAt.Local().Format("2006-01-02 15:04"),
		cmp.Previous.ID, cmp.Previous.StartedAt.Local().Format("2006-01-02 15:04"))
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Pages", "Previous", "Current", "Change"},
		Rows:   comparisonRows(cmp),
	})
	md.PlainText("")

	if len(cmp.Added) > 0 {
		md.H2(fmt.Sprintf("New Pages (%d)", len(cmp.Added)))
		md.PlainText("")
		md.BulletList(codeSpans(cmp.Added)...)
		md.PlainText("")
	}
	if len(cmp.Removed) > 0 {
		md.H2(fmt.Sprintf("Removed Pages (%d)", len(cmp.Removed)))
		md.PlainText("")
		md.BulletList(codeSpans(cmp.Removed)...)
		md.PlainText("")
	}
	if len(cmp.Changed) > 0 {
		md.H2(fmt.Sprintf("Status Changes (%d)", len(cmp.Changed)))
		md.PlainText("")
		rows := make([][]string, len(cmp.Changed))
		for i, c := range cmp.Changed {
			rows[i] = []string{"`" + c.URL + "`", c.Previous.String(), c.Current.String()}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*%d pages unchanged*", cmp.Unchanged)

	return md.Build()
}

// comparisonRows returns the page count rows shared by the text and
// Markdown output.
func comparisonRows(cmp *Comparison) [][]string {
	row := func(name string, prev, cur int) []string {
		return []string{name, strconv.Itoa(prev), strconv.Itoa(cur), formatDelta(cur - prev)}
	}
	return [][]string{
		row("Useful", cmp.Previous.UsefulPages, cmp.Current.UsefulPages),
		row("Skipped", cmp.Previous.SkippedPages, cmp.Current.SkippedPages),
		row("Failed", cmp.Previous.FailedPages, cmp.Current.FailedPages),
	}
}

func codeSpans(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = "`" + u + "`"
	}
	return out
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
