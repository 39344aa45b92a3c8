package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are tuned for enterprise documentation portals that render
// their navigation client-side and collapse most of it behind toggles.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "docscrawl"

	// DefaultMaxDepth limits how many links away from the start URL the crawl
	// may wander. Documentation trees are rarely deeper than five levels once
	// the navigation has been expanded.
	DefaultMaxDepth = 5

	// DefaultMaxPages is the budget of useful pages per crawl. Pages skipped
	// by the quality gate do not count against it.
	DefaultMaxPages = 150

	// DefaultTimeout is the per-page navigation timeout. Heavy single page
	// applications regularly need more than ten seconds to settle.
	DefaultTimeout = 20 * time.Second

	// DefaultWorkers is the number of concurrent browser tabs.
	// More tabs rarely help because documentation servers throttle bursts.
	DefaultWorkers = 6

	// DefaultCrawlDelay is the delay each worker waits after finishing a page.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultMaxClicks is the per-page click budget of the interaction engine.
	DefaultMaxClicks = 50

	// DefaultMaxExpansionTime bounds the time spent expanding one page.
	DefaultMaxExpansionTime = 30 * time.Second

	// DefaultMaxExpansionPasses is the number of catalogue passes per page.
	// Each pass can reveal one more level of a nested navigation tree.
	DefaultMaxExpansionPasses = 6

	// DefaultConsecutiveWastedLimit stops expansion after this many clicks in
	// a row produced no observable change.
	DefaultConsecutiveWastedLimit = 15

	// DefaultDelayAfterClick is the settle time after each click before the
	// page is measured again.
	DefaultDelayAfterClick = 300 * time.Millisecond

	// DefaultClickTimeout bounds a single click.
	DefaultClickTimeout = 1500 * time.Millisecond

	// DefaultMinWordCount is the word count below which a page is inspected
	// for loading screens and cookie walls.
	DefaultMinWordCount = 10

	// DefaultQueueCapacity is the capacity of the URL frontier.
	DefaultQueueCapacity = 10000

	// DefaultGracePeriod is how long the crawl waits with an empty frontier
	// and no busy worker before it concludes the site is exhausted.
	DefaultGracePeriod = 2 * time.Second

	// DefaultDequeueTimeout is how long an idle worker waits for a URL.
	DefaultDequeueTimeout = 5 * time.Second

	// DefaultMaxEmptyPolls is the number of consecutive empty dequeues after
	// which an idle worker exits.
	DefaultMaxEmptyPolls = 12

	// DefaultParallel is the number of sites crawled at once when several
	// start URLs are given. Each site runs its own browser.
	DefaultParallel = 1

	// DefaultReportInterval is the interval of the periodic progress log.
	DefaultReportInterval = 10 * time.Second

	// DefaultStaticTimeout is the timeout of the plain HTTP fallback fetch.
	DefaultStaticTimeout = 15 * time.Second

	// DefaultMaxBodySize limits the body read by the plain HTTP fallback.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultViewportWidth and DefaultViewportHeight size the browser window.
	// A desktop viewport keeps sidebars from collapsing into hamburger menus.
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	// DefaultUserAgent is a current desktop Chrome user agent. Several
	// documentation portals serve an empty shell to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// builtinDenyPatterns reject URLs that are never documentation pages:
// attachment viewers, localized duplicates, API endpoints and binary exports.
var builtinDenyPatterns = []string{
	`/viewer/attachment/`,
	`/viewer/`,
	`/(de-DE|fr-FR|ko-KR|ja-JP|zh-CN|zh-TW|pt-BR|es-ES|it-IT|nl-NL|ru-RU|pl-PL|sv-SE|da-DK|fi-FI|nb-NO|cs-CZ|hu-HU|ro-RO|tr-TR|th-TH|he-IL|ar-SA|id-ID|ms-MY|vi-VN|uk-UA|el-GR|bg-BG|hr-HR|sk-SK|sl-SI|lt-LT|lv-LV|et-EE)/`,
	`/json$`,
	`/json\?`,
	`\.json$`,
	`/api/`,
	`/rest/`,
	`/graphql`,
	`/odata/`,
	`\.xml$`,
	`\.pdf$`,
	`\.zip$`,
	`\.csv$`,
}

// BuiltinDenyPatterns returns a copy of the built-in deny patterns.
func BuiltinDenyPatterns() []string {
	out := make([]string, len(builtinDenyPatterns))
	copy(out, builtinDenyPatterns)
	return out
}

// Config holds all configuration options for docscrawl.
// It is populated from CLI flags and the optional .docscrawl file and is
// passed through the application explicitly rather than held in globals.
type Config struct {
	// StartURL is the documentation root. The crawl scope is derived from it.
	StartURL string

	// MaxDepth is the maximum link distance from the start URL.
	// Depth 0 means only the start URL is crawled.
	MaxDepth int

	// MaxPages is the maximum number of useful (non-skipped) pages.
	MaxPages int

	// Timeout is the per-page navigation timeout.
	Timeout time.Duration

	// Workers is the number of pages processed concurrently.
	Workers int

	// CrawlDelay is the delay each worker waits after a page.
	CrawlDelay time.Duration

	// HumanizedDelay adds 100-800ms of random jitter to CrawlDelay.
	HumanizedDelay bool

	// MaxRequestsPerSecond caps navigations across all workers.
	// Zero disables the limiter. robots.txt Crawl-delay may lower it further.
	MaxRequestsPerSecond float64

	// MaxClicks is the per-page click budget of the interaction engine.
	MaxClicks int

	// MaxExpansionTime bounds the time spent expanding one page.
	MaxExpansionTime time.Duration

	// MaxExpansionPasses is the number of catalogue passes per page.
	MaxExpansionPasses int

	// ConsecutiveWastedLimit stops expansion after this many wasted clicks in a row.
	ConsecutiveWastedLimit int

	// DelayAfterClick is the settle time after each click.
	DelayAfterClick time.Duration

	// ClickTimeout bounds a single click.
	ClickTimeout time.Duration

	// DenyPatterns are additional regular expressions; a URL matching any of
	// them is out of scope. Matching is case-insensitive.
	DenyPatterns []string

	// UseBuiltinDenyPatterns merges BuiltinDenyPatterns into DenyPatterns.
	UseBuiltinDenyPatterns bool

	// StripAllQueries drops the query string of every URL before dedup.
	StripAllQueries bool

	// StripQueryKeys drops only the named query parameters before dedup.
	// Typical values are tracking parameters such as utm_source.
	StripQueryKeys []string

	// AllowCrossScheme treats http and https as the same site.
	AllowCrossScheme bool

	// MinWordCount is the threshold below which a page is inspected for
	// loading screens and cookie walls.
	MinWordCount int

	// EnableStaticFallback retries failed navigations with a plain HTTP GET.
	EnableStaticFallback bool

	// MaxRetries is the number of browser retries per failed page.
	// The default of 0 leaves recovery to the static fallback alone.
	MaxRetries int

	// QueueCapacity is the capacity of the URL frontier.
	QueueCapacity int

	// GracePeriod is the quiet time before the frontier is declared exhausted.
	GracePeriod time.Duration

	// DequeueTimeout is how long an idle worker waits for a URL.
	DequeueTimeout time.Duration

	// MaxEmptyPolls is the number of consecutive empty dequeues after which
	// an idle worker exits.
	MaxEmptyPolls int

	// Headless runs Chrome without a window.
	Headless bool

	// UserAgent is sent by both the browser and the static fallback.
	UserAgent string

	// BlockResources blocks images, fonts, media and analytics hosts.
	BlockResources bool

	// ViewportWidth and ViewportHeight size the browser window.
	ViewportWidth  int
	ViewportHeight int

	// RespectRobots drops links disallowed by the site's robots.txt.
	RespectRobots bool

	// ScreenshotOnFailure stores a PNG of pages that failed to render in
	// the XDG cache directory.
	ScreenshotOnFailure bool

	// ReportInterval is the interval of the periodic progress log.
	// Zero disables the progress log.
	ReportInterval time.Duration

	// MaxBodySize limits the body read by the static fallback.
	MaxBodySize int64

	// Parallel is the number of sites crawled at once.
	Parallel int

	// Cookie is sent with every browser and fallback request.
	// Format: "name=value" or "name1=value1; name2=value2".
	Cookie string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogJSON switches the log output to JSON lines.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .docscrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of the text summary.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the text summary.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// OmitContent leaves extracted page bodies out of JSON reports.
	OmitContent bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for storing the SQLite crawl history.
	// Defaults to XDG data directory (~/.local/share/docscrawl on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl results to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:               DefaultMaxDepth,
		MaxPages:               DefaultMaxPages,
		Timeout:                DefaultTimeout,
		Workers:                DefaultWorkers,
		CrawlDelay:             DefaultCrawlDelay,
		MaxClicks:              DefaultMaxClicks,
		MaxExpansionTime:       DefaultMaxExpansionTime,
		MaxExpansionPasses:     DefaultMaxExpansionPasses,
		ConsecutiveWastedLimit: DefaultConsecutiveWastedLimit,
		DelayAfterClick:        DefaultDelayAfterClick,
		ClickTimeout:           DefaultClickTimeout,
		UseBuiltinDenyPatterns: true,
		AllowCrossScheme:       true,
		MinWordCount:           DefaultMinWordCount,
		EnableStaticFallback:   true,
		QueueCapacity:          DefaultQueueCapacity,
		GracePeriod:            DefaultGracePeriod,
		DequeueTimeout:         DefaultDequeueTimeout,
		MaxEmptyPolls:          DefaultMaxEmptyPolls,
		Headless:               true,
		UserAgent:              DefaultUserAgent,
		BlockResources:         true,
		ViewportWidth:          DefaultViewportWidth,
		ViewportHeight:         DefaultViewportHeight,
		ReportInterval:         DefaultReportInterval,
		MaxBodySize:            DefaultMaxBodySize,
		Parallel:               DefaultParallel,
	}
}

// EffectiveDenyPatterns returns the user deny patterns, preceded by the
// built-in patterns when UseBuiltinDenyPatterns is set.
func (c *Config) EffectiveDenyPatterns() []string {
	var out []string
	if c.UseBuiltinDenyPatterns {
		out = append(out, builtinDenyPatterns...)
	}
	return append(out, c.DenyPatterns...)
}

// ApplySiteConfig overlays a site configuration onto c.
// Zero values in sc leave the corresponding setting untouched.
func (c *Config) ApplySiteConfig(sc SiteConfig) {
	if sc.Cookie != "" {
		c.Cookie = sc.Cookie
	}
	if len(sc.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(sc.Headers))
		}
		for k, v := range sc.Headers {
			c.Headers[k] = v
		}
	}
	if sc.Depth != 0 {
		c.MaxDepth = sc.Depth
	}
	if sc.MaxPages != 0 {
		c.MaxPages = sc.MaxPages
	}
	if len(sc.DenyPatterns) > 0 {
		c.DenyPatterns = append(c.DenyPatterns, sc.DenyPatterns...)
	}
	if len(sc.StripQueryKeys) > 0 {
		c.StripQueryKeys = append(c.StripQueryKeys, sc.StripQueryKeys...)
	}
	if sc.RespectRobots {
		c.RespectRobots = true
	}
}

// XDGDataDir returns the XDG data directory for docscrawl.
// On Linux: ~/.local/share/docscrawl
// On macOS: ~/Library/Application Support/docscrawl
// On Windows: %LOCALAPPDATA%\docscrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for docscrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for docscrawl.
// Failure screenshots are stored below it.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.CrawlDelay < 0 || c.DelayAfterClick < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxClicks < 0 {
		return ErrInvalidMaxClicks
	}

	if c.MaxExpansionTime < 0 {
		return ErrInvalidExpansionTime
	}

	if c.QueueCapacity <= 0 {
		return ErrInvalidQueueCapacity
	}

	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.MaxRequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}

	if c.Parallel <= 0 {
		return ErrInvalidParallel
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
