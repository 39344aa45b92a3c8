package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
	"github.com/nao1215/docscrawl/internal/config"
	"github.com/nao1215/docscrawl/internal/crawler"
	"github.com/nao1215/docscrawl/internal/interaction"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/report"
	"github.com/nao1215/docscrawl/internal/robots"
	"github.com/nao1215/docscrawl/internal/scope"
)

// ErrBrowserStart is returned by CrawlStep when the browser cannot be launched.
var ErrBrowserStart = errors.New("failed to start browser")

// terminationPoll is how often the crawler checks for an exhausted frontier.
const terminationPoll = time.Second

// BrowserFactory launches the browser for one crawl.
type BrowserFactory func(ctx context.Context, cfg *config.Config) (browser.Browser, error)

// ChromeFactory returns a BrowserFactory starting headless Chrome configured
// from cfg.
func ChromeFactory(logger *slog.Logger) BrowserFactory {
	return func(ctx context.Context, cfg *config.Config) (browser.Browser, error) {
		return browser.NewChrome(ctx, browser.ChromeOptions{
			Headless:       cfg.Headless,
			UserAgent:      cfg.UserAgent,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
			BlockResources: cfg.BlockResources,
			Headers:        cfg.Headers,
			Cookie:         cfg.Cookie,
			Logger:         logger,
		})
	}
}

// CrawlStep crawls cfg.StartURL and replaces the report with the result.
type CrawlStep struct {
	cfg        *config.Config
	newBrowser BrowserFactory
	progress   func(model.CrawlMetrics)
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithBrowserFactory replaces the Chrome launcher.
func WithBrowserFactory(f BrowserFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		s.newBrowser = f
	}
}

// WithProgressFunc receives every periodic metrics snapshot of the crawl.
func WithProgressFunc(fn func(model.CrawlMetrics)) CrawlStepOption {
	return func(s *CrawlStep) {
		s.progress = fn
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step for cfg. cfg must already carry the
// site-specific settings of its start URL.
func NewCrawlStep(cfg *config.Config, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newBrowser == nil {
		s.newBrowser = ChromeFactory(s.logger)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do launches the browser, runs the crawl and closes the browser.
func (s *CrawlStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	b, err := s.newBrowser(ctx, s.cfg)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBrowserStart, err)
		rep.StopReason = model.StopErrorReason(err)
		rep.FinishedAt = time.Now()
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			s.logger.Warn("failed to close browser", "error", err)
		}
	}()

	c := crawler.New(b, s.crawlerOptions()...)
	result, err := c.Crawl(ctx, s.cfg.StartURL)
	if result != nil {
		*rep = *result
	}
	return err
}

// crawlerOptions translates the configuration into crawler options.
func (s *CrawlStep) crawlerOptions() []crawler.Option {
	cfg := s.cfg

	engine := interaction.New(
		interaction.WithBudget(interaction.Budget{
			MaxClicks:         cfg.MaxClicks,
			MaxDuration:       cfg.MaxExpansionTime,
			ConsecutiveWasted: cfg.ConsecutiveWastedLimit,
			MaxPasses:         cfg.MaxExpansionPasses,
		}),
		interaction.WithClickTimeout(cfg.ClickTimeout),
		interaction.WithDelayAfterClick(cfg.DelayAfterClick),
		interaction.WithLogger(s.logger),
	)

	opts := []crawler.Option{
		crawler.WithLogger(s.logger),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithPageTimeout(cfg.Timeout),
		crawler.WithDelay(cfg.CrawlDelay, cfg.HumanizedDelay),
		crawler.WithRequestsPerSecond(cfg.MaxRequestsPerSecond),
		crawler.WithMinWordCount(cfg.MinWordCount),
		crawler.WithStaticFallback(cfg.EnableStaticFallback),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithRequestHeaders(cfg.Headers, cfg.Cookie),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithQueueCapacity(cfg.QueueCapacity),
		crawler.WithTermination(terminationPoll, cfg.GracePeriod, cfg.DequeueTimeout, cfg.MaxEmptyPolls),
		crawler.WithEngine(engine),
		crawler.WithProgress(cfg.ReportInterval, s.progress),
		crawler.WithScopeOptions(
			scope.WithDenyPatterns(cfg.EffectiveDenyPatterns()...),
			scope.WithStripAllQueries(cfg.StripAllQueries),
			scope.WithStripQueryKeys(cfg.StripQueryKeys...),
			scope.WithCrossScheme(cfg.AllowCrossScheme),
		),
	}
	if cfg.RespectRobots {
		opts = append(opts, crawler.WithRobots(robots.New(cfg.UserAgent, robots.WithLogger(s.logger))))
	}
	if cfg.ScreenshotOnFailure {
		opts = append(opts, crawler.WithScreenshotDir(filepath.Join(config.XDGCacheDir(), "screenshots")))
	}
	return opts
}

// ReportStore persists crawl reports. database.CrawlDB implements it.
type ReportStore interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// PersistStep saves the report to the crawl history.
type PersistStep struct {
	store  ReportStore
	logger *slog.Logger
}

// NewPersistStep creates a step saving reports to store.
func NewPersistStep(store ReportStore, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the report. Runs that never started crawling are not saved.
func (s *PersistStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	if rep.Host == "" {
		s.logger.Debug("not saving crawl that did not start", "start_url", rep.StartURL)
		return nil
	}
	id, err := s.store.SaveCrawlReport(ctx, rep)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}
	s.logger.Info("crawl saved", "id", id, "host", rep.Host)
	return nil
}

// ReportStep writes the report. It is safe to share between pipelines
// running concurrently; reports are written one at a time.
type ReportStep struct {
	mu     sync.Mutex
	writer report.Writer
}

// NewReportStep creates a step writing reports with w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, rep *model.CrawlReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
