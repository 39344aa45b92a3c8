package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// refAttr tags elements handed out by QueryAll so they can be found again.
const refAttr = "data-docscrawl-ref"

// blockedResourcePatterns are URL patterns Chrome is told not to load.
// Images, fonts and media never contribute text; analytics scripts slow
// every page and sometimes keep the network busy forever.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico", "*.bmp",
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
	"*.mp4", "*.webm", "*.mp3", "*.ogg", "*.wav", "*.avi", "*.mov",
	"*google-analytics.com*", "*googletagmanager.com*", "*facebook.net*",
	"*doubleclick.net*", "*hotjar.*", "*optimizely.*", "*segment.com*",
	"*segment.io*", "*mixpanel.*", "*amplitude.*", "*fullstory.*",
	"*newrelic.*", "*sentry.io*",
}

// BlockedResourcePatterns returns a copy of the patterns blocked when
// resource blocking is enabled.
func BlockedResourcePatterns() []string {
	out := make([]string, len(blockedResourcePatterns))
	copy(out, blockedResourcePatterns)
	return out
}

// ChromeOptions configures headless Chrome.
type ChromeOptions struct {
	// Headless runs Chrome without a window.
	Headless bool

	// UserAgent overrides Chrome's user agent when non-empty.
	UserAgent string

	// ViewportWidth and ViewportHeight size the window.
	ViewportWidth  int
	ViewportHeight int

	// BlockResources blocks images, fonts, media and analytics hosts.
	BlockResources bool

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// Cookie is sent as the Cookie header with every request.
	Cookie string

	// ExecPath is the Chrome binary. Empty lets chromedp search for it.
	ExecPath string

	// Logger receives browser lifecycle messages.
	Logger *slog.Logger
}

// Chrome is a Browser backed by one headless Chrome process.
// Each page is a separate tab of that process.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          ChromeOptions
	logger        *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewChrome starts Chrome. It fails when no Chrome binary can be launched.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-extensions", true),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		execOpts = append(execOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}
	if opts.BlockResources {
		execOpts = append(execOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives the caller's context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Debug("chrome started", "headless", opts.Headless, "block_resources", opts.BlockResources)

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
		logger:        logger,
	}, nil
}

// NewPage opens a new tab configured with the browser's headers and
// resource blocking.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	p := &chromePage{ctx: tabCtx, cancel: tabCancel}

	actions := []chromedp.Action{network.Enable()}
	if c.opts.BlockResources {
		actions = append(actions, network.SetBlockedURLS(blockedResourcePatterns))
	}
	if headers := c.extraHeaders(); len(headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}

	runCtx, cancel := p.runContext(ctx, 0)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

func (c *Chrome) extraHeaders() network.Headers {
	headers := network.Headers{}
	for k, v := range c.opts.Headers {
		headers[k] = v
	}
	if c.opts.Cookie != "" {
		headers["Cookie"] = c.opts.Cookie
	}
	return headers
}

// Close shuts Chrome down.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	c.logger.Debug("chrome stopped")
	return nil
}

// chromePage is one Chrome tab.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// runContext derives a context for one chromedp.Run call. It is bound to
// the tab, cancelled with ctx, and limited by timeout when positive.
func (p *chromePage) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) (Response, error) {
	runCtx, cancel := p.runContext(ctx, timeout)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, url, timeout)
		}
		return Response{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	out := Response{URL: url}
	if resp != nil {
		out.Status = int(resp.Status)
		out.ContentType = mediaType(resp.MimeType)
		out.Bytes = int64(resp.EncodedDataLength)
		if resp.URL != "" {
			out.URL = resp.URL
		}
	}

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err == nil && location != "" {
		out.URL = location
	}
	return out, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	runCtx, cancel := p.runContext(ctx, 0)
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (p *chromePage) QueryAll(ctx context.Context, selector string, limit int) ([]Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`(() => {
  let nodes;
  try { nodes = document.querySelectorAll(%s); } catch (e) { return []; }
  const limit = %d;
  const refs = [];
  window.__docscrawlSeq = window.__docscrawlSeq || 0;
  for (const el of nodes) {
    if (limit > 0 && refs.length >= limit) break;
    let ref = el.getAttribute(%q);
    if (!ref) {
      ref = String(++window.__docscrawlSeq);
      el.setAttribute(%q, ref);
    }
    refs.push(ref);
  }
  return refs;
})()`, quoted, limit, refAttr, refAttr)

	var refs []string
	if err := p.Evaluate(ctx, script, &refs); err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(refs))
	for _, ref := range refs {
		elements = append(elements, &chromeElement{page: p, ref: ref})
	}
	return elements, nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	script := fmt.Sprintf(`(() => { try { return document.querySelectorAll(%s).length; } catch (e) { return 0; } })()`, quoted)

	var n int
	if err := p.Evaluate(ctx, script, &n); err != nil {
		return 0, err
	}
	return n, nil
}

const snapshotScript = `(() => ({
  textLength: document.body ? (document.body.innerText || '').length : 0,
  linkCount: document.querySelectorAll('a[href]').length,
  headingCount: document.querySelectorAll('h1,h2,h3,h4,h5,h6').length,
  expandedCount: document.querySelectorAll('[aria-expanded="true"]').length,
}))()`

func (p *chromePage) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	if err := p.Evaluate(ctx, snapshotScript, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	runCtx, cancel := p.runContext(ctx, 0)
	defer cancel()

	if out == nil {
		return chromedp.Run(runCtx, chromedp.Evaluate(script, nil))
	}
	var raw []byte
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw)); err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := p.runContext(ctx, 0)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := p.runContext(ctx, 0)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// chromeElement refers to an element by its ref attribute.
type chromeElement struct {
	page *chromePage
	ref  string
}

// call wraps body in a function receiving the element, returning null
// when the element is gone.
func (e *chromeElement) call(body string) string {
	return `(() => {
  const el = document.querySelector('[` + refAttr + `="` + e.ref + `"]');
  if (!el) return null;
  return (function (el) {` + body + `})(el);
})()`
}

func (e *chromeElement) Evaluate(ctx context.Context, body string, out any) error {
	var raw json.RawMessage
	if err := e.page.Evaluate(ctx, e.call(body), &raw); err != nil {
		return err
	}
	if string(raw) == "null" {
		return ErrElementDetached
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

const visibleBody = `
  const r = el.getBoundingClientRect();
  const s = window.getComputedStyle(el);
  return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';`

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.Evaluate(ctx, visibleBody, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

const describeBody = `
  const r = el.getBoundingClientRect();
  const attr = (n) => el.getAttribute(n) || '';
  const holder = el.closest('[aria-expanded], details');
  let ancestorExpanded = false;
  if (holder) {
    ancestorExpanded = holder.tagName === 'DETAILS' ? holder.open : holder.getAttribute('aria-expanded') === 'true';
  }
  const cls = typeof el.className === 'string' ? el.className : attr('class');
  return {
    tag: el.tagName,
    id: el.id || '',
    class: cls,
    text: (el.innerText || el.textContent || '').trim().slice(0, 80),
    href: attr('href'),
    role: attr('role'),
    title: attr('title'),
    ariaLabel: attr('aria-label'),
    top: r.top + window.scrollY,
    left: r.left + window.scrollX,
    ariaExpanded: attr('aria-expanded'),
    hasAriaExpanded: el.hasAttribute('aria-expanded'),
    hasAriaPressed: el.hasAttribute('aria-pressed'),
    hasDataToggle: el.hasAttribute('data-toggle'),
    hasDataBsToggle: el.hasAttribute('data-bs-toggle'),
    hasOnclick: el.hasAttribute('onclick') || typeof el.onclick === 'function',
    ancestorExpanded: ancestorExpanded,
  };`

func (e *chromeElement) Describe(ctx context.Context) (ElementInfo, error) {
	var info ElementInfo
	if err := e.Evaluate(ctx, describeBody, &info); err != nil {
		return ElementInfo{}, err
	}
	return info, nil
}

const clickBody = `
  el.scrollIntoView({block: 'center', inline: 'nearest'});
  el.click();
  return true;`

func (e *chromeElement) Click(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.Evaluate(ctx, clickBody, nil)
}

// mediaType strips parameters from a MIME type.
func mediaType(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}
	return mt
}
