package crawler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/docscrawl/internal/extract"
	"github.com/nao1215/docscrawl/internal/interaction"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/robots"
	"github.com/nao1215/docscrawl/internal/scope"
)

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxDepth sets the maximum link distance from the start URL.
// 0 crawls only the start URL.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

// WithMaxPages sets the page budget. Skipped pages do not count.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		c.maxPages = n
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		c.workers = n
	}
}

// WithPageTimeout sets the navigation timeout of one page.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.pageTimeout = d
	}
}

// WithDelay sets the pause a worker takes after each page.
// With humanized set, a random 100-800ms is added to every pause.
func WithDelay(d time.Duration, humanized bool) Option {
	return func(c *Crawler) {
		c.delay = d
		c.humanized = humanized
	}
}

// WithRequestsPerSecond limits page loads across all workers.
// Zero means unlimited.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Crawler) {
		c.requestsPerSecond = rps
	}
}

// WithMinWordCount sets the word count below which placeholder pages are skipped.
func WithMinWordCount(n int) Option {
	return func(c *Crawler) {
		c.minWordCount = n
	}
}

// WithStaticFallback enables the plain HTTP fetch used when the browser
// fails to load a page.
func WithStaticFallback(enabled bool) Option {
	return func(c *Crawler) {
		c.staticFallback = enabled
	}
}

// WithHTTPClient sets the client used by the static fallback.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent of static fallback requests.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) {
		c.userAgent = ua
	}
}

// WithRequestHeaders sets extra headers and a cookie for static fallback
// requests. The browser is configured with the same values separately.
func WithRequestHeaders(headers map[string]string, cookie string) Option {
	return func(c *Crawler) {
		c.headers = headers
		c.cookie = cookie
	}
}

// WithMaxBodySize limits the body read by the static fallback.
func WithMaxBodySize(n int64) Option {
	return func(c *Crawler) {
		c.maxBodySize = n
	}
}

// WithMaxRetries sets how often a failed navigation is retried before the
// static fallback. Retries back off 1s, 3s, 5s, ...
func WithMaxRetries(n int) Option {
	return func(c *Crawler) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base and per-attempt increment of retry waits.
func WithRetryBackoff(base, step time.Duration) Option {
	return func(c *Crawler) {
		c.retryBase = base
		c.retryStep = step
	}
}

// WithQueueCapacity sets the frontier capacity.
func WithQueueCapacity(n int) Option {
	return func(c *Crawler) {
		c.queueCapacity = n
	}
}

// WithTermination tunes how frontier exhaustion is detected: the watcher
// polls every poll, and confirms an empty idle frontier after grace.
// Workers wait dequeue for a URL and give up after maxEmptyPolls empty waits.
func WithTermination(poll, grace, dequeue time.Duration, maxEmptyPolls int) Option {
	return func(c *Crawler) {
		c.pollInterval = poll
		c.gracePeriod = grace
		c.dequeueTimeout = dequeue
		c.maxEmptyPolls = maxEmptyPolls
	}
}

// WithLinkSettle sets how long a page with few links is watched for links
// rendered late.
func WithLinkSettle(poll, limit time.Duration) Option {
	return func(c *Crawler) {
		c.linkPoll = poll
		c.linkSettleMax = limit
	}
}

// WithScopeOptions passes options to the scope filter built for each crawl.
func WithScopeOptions(opts ...scope.Option) Option {
	return func(c *Crawler) {
		c.scopeOpts = append(c.scopeOpts, opts...)
	}
}

// WithEngine sets the interaction engine used on script-rendered pages.
func WithEngine(e *interaction.Engine) Option {
	return func(c *Crawler) {
		c.engine = e
	}
}

// WithExtractor sets the content extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(c *Crawler) {
		c.extractor = e
	}
}

// WithRobots makes the crawler obey robots.txt.
func WithRobots(p *robots.Policy) Option {
	return func(c *Crawler) {
		c.robots = p
	}
}

// WithScreenshotDir saves a screenshot of every page the browser fails to load.
func WithScreenshotDir(dir string) Option {
	return func(c *Crawler) {
		c.screenshotDir = dir
	}
}

// WithProgress sets the progress reporter interval and an optional callback
// receiving each metrics snapshot.
func WithProgress(interval time.Duration, fn func(model.CrawlMetrics)) Option {
	return func(c *Crawler) {
		c.reportInterval = interval
		c.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}
