package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/docscrawl/internal/config"
	"github.com/nao1215/docscrawl/internal/database"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/pipeline"
	"github.com/nao1215/docscrawl/internal/report"
	"github.com/nao1215/docscrawl/internal/scope"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url...]",
		Short: "Crawl a documentation site",
		Long: `Crawl loads every page below the start URL in headless Chrome, expands
collapsed navigation, tabs and accordions, and extracts the readable text.

The crawl stays inside the documentation subtree of the start URL. When the
start URL redirects to a landing page elsewhere on the same host, the scope
follows the redirect. Pages that fail in the browser are retried with a plain
HTTP request unless --no-fallback is given.

Press Ctrl+C to stop: pages in progress are finished, the partial result is
saved and reported.

Examples:
  # Crawl a documentation tree
  docscrawl crawl https://docs.example.com/guide/

  # Crawl deeper with more tabs and a page budget
  docscrawl crawl -d 8 -w 8 -p 500 https://docs.example.com/

  # Crawl two sites at once and write JSON lines to a file
  docscrawl crawl --parallel 2 --json -o crawl.json https://a.example.com/docs https://b.example.com/help

  # Be polite: honor robots.txt and cap the request rate
  docscrawl crawl --robots --rps 2 --humanized https://docs.example.com/

Configuration file (.docscrawl) example:
  defaults:
    stripQueryKeys: [utm_source, utm_medium]
  sites:
    partner.example.com:
      cookie: "session_id=abc123"
      depth: 8`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl limits
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the start URL (0 crawls only the start URL)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of useful pages per site")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages processed concurrently")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Navigation timeout for each page")
	cmd.Flags().Int("retries", 0,
		"Browser retries per failed page before the static fallback")

	// Politeness
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Pause each worker takes after a page")
	cmd.Flags().Bool("humanized", false,
		"Add 100-800ms of random jitter to every pause")
	cmd.Flags().Float64("rps", 0,
		"Maximum page loads per second across all workers (0 = unlimited)")
	cmd.Flags().Bool("robots", false,
		"Honor the site's robots.txt")

	// Interaction
	cmd.Flags().Int("max-clicks", config.DefaultMaxClicks,
		"Click budget per page for expanding navigation")
	cmd.Flags().Duration("expand-timeout", config.DefaultMaxExpansionTime,
		"Time budget per page for expanding navigation")

	// Scope
	cmd.Flags().StringSlice("deny", nil,
		"Additional regular expression for URLs to skip (repeatable)")
	cmd.Flags().Bool("no-builtin-deny", false,
		"Do not apply the built-in deny patterns")
	cmd.Flags().StringSlice("strip-query", nil,
		"Query parameter removed before deduplication (repeatable)")
	cmd.Flags().Bool("strip-all-queries", false,
		"Remove every query string before deduplication")
	cmd.Flags().Bool("same-scheme", false,
		"Treat http and https URLs as different sites")

	// Browser
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User agent for the browser and the static fallback")
	cmd.Flags().Bool("no-block", false,
		"Load images, fonts, media and analytics")
	cmd.Flags().Bool("no-fallback", false,
		"Do not retry failed pages with a plain HTTP request")
	cmd.Flags().Bool("screenshots", false,
		"Save a screenshot of every page that failed to render")

	// Batch
	cmd.Flags().IntP("parallel", "P", config.DefaultParallel,
		"Number of sites crawled at once")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .docscrawl in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("no-content", false,
		"Leave page text, headings, tables and code blocks out of the JSON report")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not print crawl progress")
	cmd.Flags().Bool("no-db", false,
		"Do not save the result to the crawl history")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return config.ErrNoTarget
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Resolve every site before anything is started so that a typo in the
	// last URL does not surface after the first crawl.
	sites := make(map[string]*config.Config, len(args))
	for _, startURL := range args {
		siteCfg, err := configForSite(cfg, startURL)
		if err != nil {
			return err
		}
		sites[startURL] = siteCfg
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	return runCrawl(ctx, cfg, args, sites, crawlEnv{
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
		logger:   logger,
		quiet:    quiet,
		browsers: pipeline.ChromeFactory(logger),
	})
}

// crawlEnv carries the collaborators of a crawl run.
type crawlEnv struct {
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	quiet    bool
	browsers pipeline.BrowserFactory
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. StartURL is left empty; see configForSite.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.HumanizedDelay, err = flags.GetBool("humanized"); err != nil {
		return nil, err
	}
	if cfg.MaxRequestsPerSecond, err = flags.GetFloat64("rps"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.MaxClicks, err = flags.GetInt("max-clicks"); err != nil {
		return nil, err
	}
	if cfg.MaxExpansionTime, err = flags.GetDuration("expand-timeout"); err != nil {
		return nil, err
	}
	if cfg.DenyPatterns, err = flags.GetStringSlice("deny"); err != nil {
		return nil, err
	}
	if cfg.StripQueryKeys, err = flags.GetStringSlice("strip-query"); err != nil {
		return nil, err
	}
	if cfg.StripAllQueries, err = flags.GetBool("strip-all-queries"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ScreenshotOnFailure, err = flags.GetBool("screenshots"); err != nil {
		return nil, err
	}
	if cfg.Parallel, err = flags.GetInt("parallel"); err != nil {
		return nil, err
	}

	noBuiltinDeny, err := flags.GetBool("no-builtin-deny")
	if err != nil {
		return nil, err
	}
	cfg.UseBuiltinDenyPatterns = !noBuiltinDeny

	sameScheme, err := flags.GetBool("same-scheme")
	if err != nil {
		return nil, err
	}
	cfg.AllowCrossScheme = !sameScheme

	headful, err := flags.GetBool("headful")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !headful

	noBlock, err := flags.GetBool("no-block")
	if err != nil {
		return nil, err
	}
	cfg.BlockResources = !noBlock

	noFallback, err := flags.GetBool("no-fallback")
	if err != nil {
		return nil, err
	}
	cfg.EnableStaticFallback = !noFallback

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.OmitContent, err = flags.GetBool("no-content"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. An explicitly given path
// must exist; otherwise a missing file yields an empty configuration.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf, nil
}

// configForSite returns a copy of base for one start URL with the site
// configuration of its host applied. The copy shares no slices or maps
// with base, so sites crawled concurrently cannot affect each other.
func configForSite(base *config.Config, startURL string) (*config.Config, error) {
	root, err := scope.Canonicalize(startURL, false)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", startURL, err)
	}

	cfg := *base
	cfg.StartURL = startURL
	cfg.DenyPatterns = slices.Clone(base.DenyPatterns)
	cfg.StripQueryKeys = slices.Clone(base.StripQueryKeys)
	cfg.Headers = maps.Clone(base.Headers)
	if base.SiteConfigs != nil {
		cfg.ApplySiteConfig(base.SiteConfigs.GetSiteConfig(root.Host))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error for %s: %w", root.Host, err)
	}
	return &cfg, nil
}

// runCrawl crawls every start URL and writes one report per site.
func runCrawl(ctx context.Context, cfg *config.Config, startURLs []string, sites map[string]*config.Config, env crawlEnv) error {
	logger := env.logger

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	output := env.stdout
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}
	reportStep := pipeline.NewReportStep(newReportWriter(cfg, output, len(startURLs) > 1))

	factory := func(startURL string) (*pipeline.Pipeline, error) {
		siteCfg, ok := sites[startURL]
		if !ok {
			return nil, fmt.Errorf("no configuration for %s", startURL)
		}

		p := pipeline.New(pipeline.WithLogger(logger))
		stepOpts := []pipeline.CrawlStepOption{
			pipeline.WithCrawlLogger(logger),
			pipeline.WithBrowserFactory(env.browsers),
		}
		if !env.quiet {
			stepOpts = append(stepOpts, pipeline.WithProgressFunc(progressPrinter(env.stderr, startURL)))
		}
		p.AddStep(pipeline.NewCrawlStep(siteCfg, stepOpts...))

		if db != nil {
			p.AddFinalSteps(pipeline.NewPersistStep(db, logger))
		}
		p.AddFinalSteps(reportStep)
		return p, nil
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.Parallel),
		pipeline.WithBatchLogger(logger),
	)

	started := time.Now()
	reports, err := bp.ProcessBatch(ctx, startURLs)
	if !env.quiet {
		printBatchSummary(env.stderr, reports, time.Since(started))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createReportFile creates the report file and its directories.
// Reports may contain text from pages behind a login, so the file is
// readable by the owner only.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// newReportWriter returns the writer for the selected report format.
// With several sites, JSON reports are written one per line.
func newReportWriter(cfg *config.Config, w io.Writer, multiSite bool) report.Writer {
	return report.NewWriter(report.FormatFor(cfg.JSONReport, cfg.MarkdownReport), w, report.Options{
		Version:     getVersion(),
		Pretty:      !multiSite,
		OmitContent: cfg.OmitContent,
		Verbose:     cfg.Verbose,
	})
}

// progressPrinter returns a progress callback printing one line per snapshot.
func progressPrinter(w io.Writer, startURL string) func(model.CrawlMetrics) {
	return func(m model.CrawlMetrics) {
		fmt.Fprintf(w, "%s: %d pages, %d skipped, %d failed, %d queued, %.2f pages/s, %s\n",
			startURL,
			m.PagesCrawled,
			m.PagesSkipped,
			m.PagesFailed,
			m.QueueSize,
			m.PagesPerSecondRolling,
			humanize.Bytes(uint64(max(m.TotalBytes, 0))),
		)
	}
}

// printBatchSummary prints one line per site once the batch is done.
func printBatchSummary(w io.Writer, reports []*model.CrawlReport, elapsed time.Duration) {
	fmt.Fprintln(w)
	notStarted := 0
	for _, r := range reports {
		if r == nil {
			notStarted++
			continue
		}
		fmt.Fprintf(w, "%s: %s useful pages, %s (%s)\n",
			r.StartURL,
			humanize.Comma(int64(r.UsefulPages())),
			r.StopReason,
			r.Duration().Round(time.Second),
		)
	}
	if notStarted > 0 {
		fmt.Fprintf(w, "%d site(s) not started\n", notStarted)
	}
	fmt.Fprintf(w, "Crawl completed in %s\n", elapsed.Round(time.Millisecond))
}
