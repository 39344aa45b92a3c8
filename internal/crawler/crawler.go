package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
	"github.com/nao1215/docscrawl/internal/config"
	"github.com/nao1215/docscrawl/internal/extract"
	"github.com/nao1215/docscrawl/internal/interaction"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/robots"
	"github.com/nao1215/docscrawl/internal/scope"
)

// State is the lifecycle state of a Crawler.
type State int32

const (
	// StateIdle means no crawl has started, or the last one was reset.
	StateIdle State = iota

	// StateRunning means workers are taking pages from the frontier.
	StateRunning

	// StateDraining means a stop was decided and in-flight pages are finishing.
	StateDraining

	// StateTerminated means the last crawl finished.
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Crawler crawls one documentation site with a bounded pool of browser
// workers. A Crawler runs one crawl at a time and may be reused.
type Crawler struct {
	browser browser.Browser

	maxDepth          int
	maxPages          int
	workers           int
	pageTimeout       time.Duration
	delay             time.Duration
	humanized         bool
	requestsPerSecond float64
	minWordCount      int
	maxRetries        int
	retryBase         time.Duration
	retryStep         time.Duration

	staticFallback bool
	staticTimeout  time.Duration
	httpClient     *http.Client
	userAgent      string
	headers        map[string]string
	cookie         string
	maxBodySize    int64

	queueCapacity  int
	pollInterval   time.Duration
	gracePeriod    time.Duration
	dequeueTimeout time.Duration
	maxEmptyPolls  int
	linkPoll       time.Duration
	linkSettleMax  time.Duration

	scopeOpts      []scope.Option
	engine         *interaction.Engine
	extractor      *extract.Extractor
	robots         *robots.Policy
	screenshotDir  string
	reportInterval time.Duration
	progress       func(model.CrawlMetrics)
	logger         *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	current *crawl
}

// New returns a Crawler rendering pages with b.
func New(b browser.Browser, opts ...Option) *Crawler {
	c := &Crawler{
		browser:        b,
		maxDepth:       config.DefaultMaxDepth,
		maxPages:       config.DefaultMaxPages,
		workers:        config.DefaultWorkers,
		pageTimeout:    config.DefaultTimeout,
		delay:          config.DefaultCrawlDelay,
		minWordCount:   config.DefaultMinWordCount,
		retryBase:      time.Second,
		retryStep:      2 * time.Second,
		staticFallback: true,
		staticTimeout:  config.DefaultStaticTimeout,
		userAgent:      config.DefaultUserAgent,
		maxBodySize:    config.DefaultMaxBodySize,
		queueCapacity:  config.DefaultQueueCapacity,
		pollInterval:   time.Second,
		gracePeriod:    config.DefaultGracePeriod,
		dequeueTimeout: config.DefaultDequeueTimeout,
		maxEmptyPolls:  config.DefaultMaxEmptyPolls,
		linkPoll:       500 * time.Millisecond,
		linkSettleMax:  4 * time.Second,
		reportInterval: config.DefaultReportInterval,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.workers < 1 {
		c.workers = 1
	}
	if c.queueCapacity < 1 {
		c.queueCapacity = config.DefaultQueueCapacity
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.staticTimeout}
	}
	if c.engine == nil {
		c.engine = interaction.New(interaction.WithLogger(c.logger))
	}
	if c.extractor == nil {
		c.extractor = extract.New()
	}
	return c
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	return State(c.state.Load())
}

func (c *Crawler) setState(s State) {
	c.state.Store(int32(s))
}

// Stop asks the running crawl to stop. Workers finish the page they are on
// and take no new ones. Stop is a no-op when no crawl is running.
func (c *Crawler) Stop() {
	c.mu.Lock()
	cr := c.current
	c.mu.Unlock()
	if cr != nil {
		cr.finish(model.StopUser)
	}
}

// Crawl crawls the site rooted at rootURL and returns the report.
//
// Per-page failures never fail the crawl; they are recorded in the report.
// An error is returned only when the crawl could not run at all, in which
// case the report carries an error stop reason.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(rootURL)

	if c.browser == nil {
		return c.abort(report, ErrNoBrowser)
	}
	filter, err := scope.New(rootURL, append([]scope.Option{scope.WithLogger(c.logger)}, c.scopeOpts...)...)
	if err != nil {
		return c.abort(report, fmt.Errorf("invalid root URL: %w", err))
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	cr := newCrawl(ctx, c, filter, rootURL)
	c.current = cr
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}()

	c.setState(StateRunning)
	cr.run()
	c.setState(StateTerminated)

	cr.fill(report)
	c.logger.Info("crawl finished",
		"start_url", rootURL,
		"pages", len(report.Pages),
		"useful", report.UsefulPages(),
		"errors", len(report.Errors),
		"stop_reason", report.StopReason.String(),
		"duration", report.Duration().Round(time.Millisecond),
	)
	return report, nil
}

func (c *Crawler) abort(report *model.CrawlReport, err error) (*model.CrawlReport, error) {
	report.StopReason = model.StopErrorReason(err)
	report.FinishedAt = time.Now()
	c.setState(StateTerminated)
	return report, err
}
