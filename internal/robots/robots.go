// Package robots evaluates robots.txt rules with per-host caching.
//
// Missing, unreachable or unparsable robots.txt files allow everything.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultCacheTTL = time.Hour
	maxBodyBytes    = 512 * 1024
)

// Policy checks URLs against robots.txt. It is safe for concurrent use.
type Policy struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]entry
}

type entry struct {
	fetched time.Time
	data    *robotstxt.RobotsData // nil allows all
}

// Option configures a Policy.
type Option func(*Policy)

// WithHTTPClient sets the client used to fetch robots.txt.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Policy) {
		p.client = c
	}
}

// WithCacheTTL sets how long fetched rules are reused.
func WithCacheTTL(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = l
	}
}

// New returns a Policy evaluating rules for userAgent.
func New(userAgent string, opts ...Option) *Policy {
	p := &Policy{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		ttl:       defaultCacheTTL,
		logger:    slog.Default(),
		cache:     make(map[string]entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allowed reports whether rawURL may be crawled. Relative or unparsable
// URLs are not allowed.
func (p *Policy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	data := p.rules(ctx, u.Scheme, u.Host)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, p.userAgent)
}

// CrawlDelay returns the Crawl-delay that applies to the user agent on the
// host of rawURL, or 0.
func (p *Policy) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0
	}
	data := p.rules(ctx, u.Scheme, u.Host)
	if data == nil {
		return 0
	}
	group := data.FindGroup(p.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// Purge drops cached rules for host.
func (p *Policy) Purge(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, strings.ToLower(host))
}

func (p *Policy) rules(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	host = strings.ToLower(host)

	p.mu.RLock()
	e, ok := p.cache[host]
	p.mu.RUnlock()
	if ok && time.Since(e.fetched) < p.ttl {
		return e.data
	}

	data, err := p.fetch(ctx, scheme, host)
	if err != nil {
		p.logger.Debug("robots.txt unavailable, allowing all", "host", host, "error", err)
	}

	p.mu.Lock()
	p.cache[host] = entry{fetched: time.Now(), data: data}
	p.mu.Unlock()
	return data
}

func (p *Policy) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := scheme + "://" + host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
