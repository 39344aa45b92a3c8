package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
	"github.com/nao1215/docscrawl/internal/extract"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/monitor"
)

const (
	// linkSettleThreshold is the link count at which a page is considered
	// rendered without waiting.
	linkSettleThreshold = 5

	// linkStableTicks is how many unchanged polls end the link wait.
	linkStableTicks = 2
)

// outcome is the result of processing one entry.
type outcome struct {
	page *model.Page

	// links are every link resolved on the page, in scope or not.
	links  []string
	timing monitor.PageTiming
}

// process loads, expands and extracts one page. It never fails: every
// problem ends up in the returned page.
func (cr *crawl) process(e entry) outcome {
	c := cr.c
	ctx := cr.pageCtx

	page := &model.Page{
		URL:         e.url,
		ParentURL:   e.parent,
		Depth:       e.depth,
		Status:      model.StatusOK,
		SectionPath: e.sectionPath,
	}
	out := outcome{page: page}
	defer func() {
		page.FetchedAt = time.Now()
	}()

	cr.markVisited(e.url)
	if err := cr.limiter.Wait(ctx); err != nil {
		cr.logger.Debug("rate limiter wait failed", "url", e.url, "error", err)
	}

	tab, err := c.browser.NewPage(ctx)
	if err != nil {
		return cr.fallback(out, e, fmt.Errorf("%w: open tab: %w", ErrNavigation, err))
	}
	defer func() {
		if err := tab.Close(); err != nil {
			cr.logger.Debug("close tab", "url", e.url, "error", err)
		}
	}()

	navStart := time.Now()
	resp, err := cr.navigate(ctx, tab, e.url)
	out.timing.Navigate = time.Since(navStart)
	if err != nil {
		cr.logger.Warn("navigation failed", "url", e.url, "error", err)
		cr.screenshot(ctx, tab, e.url)
		return cr.fallback(out, e, err)
	}

	page.Bytes = resp.Bytes
	cr.mon.RecordBytes(resp.Bytes)
	if resp.URL != "" && resp.URL != e.url {
		page.FinalURL = resp.URL
	}
	if !isHTML(resp.ContentType) {
		page.Skip("non-HTML content type " + resp.ContentType)
		return out
	}

	cr.settleLinks(ctx, tab)
	cr.dismissConsent(ctx, tab)
	if e.depth == 0 && page.FinalURL != "" {
		cr.checkRedirect(page.FinalURL)
	}

	page.Complexity = cr.classify(ctx, tab)
	if page.Complexity == complexityJS && (c.maxPages <= 0 || len(cr.queue) < c.maxPages) {
		r := c.engine.Expand(ctx, tab)
		page.MeaningfulClicks = r.MeaningfulClicks
		page.ClicksAttempted = r.TotalAttempted
	}

	extractStart := time.Now()
	base := e.url
	if page.FinalURL != "" {
		base = page.FinalURL
	}
	res, err := cr.extract(ctx, tab, base)
	if err != nil {
		cr.logger.Warn("extraction failed", "url", e.url, "error", err)
		page.Error = err.Error()
		res = &extract.Result{}
	}
	apply(page, res)
	out.links = res.Links
	out.timing.Extract = time.Since(extractStart)

	cr.gate(page)
	return out
}

// navigate loads url in tab, retrying up to maxRetries times.
// HTTP error statuses are returned as *StatusError.
func (cr *crawl) navigate(ctx context.Context, tab browser.Page, url string) (browser.Response, error) {
	c := cr.c
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			cr.mon.RecordRetry()
			wait := c.retryBase + time.Duration(attempt-1)*c.retryStep
			cr.logger.Debug("retrying navigation", "url", url, "attempt", attempt, "wait", wait, "error", lastErr)
			t := time.NewTimer(wait)
			select {
			case <-cr.stopCtx.Done():
				t.Stop()
				return browser.Response{}, lastErr
			case <-t.C:
			}
		}

		resp, err := tab.Navigate(ctx, url, c.pageTimeout)
		switch {
		case errors.Is(err, browser.ErrNavigationTimeout):
			lastErr = fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
		case err != nil:
			lastErr = fmt.Errorf("%w: %w", ErrNavigation, err)
		case resp.Status >= 400:
			lastErr = &StatusError{Code: resp.Status}
		default:
			return resp, nil
		}
	}
	return browser.Response{}, lastErr
}

// fallback handles a page the browser could not load: the static fetch
// when enabled, a failed page otherwise.
func (cr *crawl) fallback(out outcome, e entry, navErr error) outcome {
	page := out.page
	status := model.StatusFailed
	if errors.Is(navErr, ErrNavigationTimeout) {
		status = model.StatusTimeout
	}

	if !cr.c.staticFallback {
		page.Fail(status, errorMessage(navErr))
		return out
	}

	start := time.Now()
	sp, err := cr.c.fetchStatic(cr.pageCtx, e.url)
	out.timing.Extract = time.Since(start)
	if err != nil {
		msg := "Static fallback failed: " + err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			msg = se.Error()
		}
		cr.logger.Warn("static fallback failed", "url", e.url, "error", err)
		page.Fail(status, msg)
		return out
	}

	cr.logger.Info("static fallback succeeded", "url", e.url, "navigation_error", navErr)
	page.StaticFallback = true
	page.Complexity = complexityHTML
	page.Bytes = sp.bytes
	cr.mon.RecordBytes(sp.bytes)
	if sp.finalURL != "" && sp.finalURL != e.url {
		page.FinalURL = sp.finalURL
	}
	if !isHTML(sp.contentType) {
		page.Skip("non-HTML content type " + sp.contentType)
		return out
	}

	apply(page, sp.result)
	out.links = sp.result.Links
	cr.gate(page)
	return out
}

// extract reads the rendered document and runs the extractor on it.
func (cr *crawl) extract(ctx context.Context, tab browser.Page, baseURL string) (*extract.Result, error) {
	doc, err := tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	res, err := cr.c.extractor.Extract(doc, baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return res, nil
}

// apply copies extracted content into page. A page without its own
// section path keeps the one inherited from its parent.
func apply(page *model.Page, res *extract.Result) {
	page.Title = res.Title
	page.Headings = res.Headings
	page.SetText(res.Text)
	page.Tables = res.Tables
	page.CodeBlocks = res.CodeBlocks
	page.Breadcrumb = res.Breadcrumb
	if len(res.SectionPath) > 0 {
		page.SectionPath = res.SectionPath
	}
}

// settleLinks waits for pages that render navigation late. Pages showing
// enough links return at once; others are polled until the link count
// holds still or the wait limit passes.
func (cr *crawl) settleLinks(ctx context.Context, tab browser.Page) {
	c := cr.c
	snap, err := tab.Snapshot(ctx)
	if err != nil || snap.LinkCount >= linkSettleThreshold || c.linkSettleMax <= 0 {
		return
	}

	last, stable := snap.LinkCount, 0
	deadline := time.Now().Add(c.linkSettleMax)
	for time.Now().Before(deadline) {
		time.Sleep(c.linkPoll)
		snap, err := tab.Snapshot(ctx)
		if err != nil {
			return
		}
		if snap.LinkCount == last {
			stable++
			if stable >= linkStableTicks {
				return
			}
			continue
		}
		last, stable = snap.LinkCount, 0
	}
}

// checkRedirect adapts the scope when the start page landed elsewhere.
func (cr *crawl) checkRedirect(landing string) {
	cr.mu.Lock()
	changed := cr.filter.WidenScope(landing)
	if changed {
		cr.widened = true
	}
	cr.mu.Unlock()

	if changed && cr.c.robots != nil {
		cr.applyCrawlDelay(landing)
	}
}

// screenshot saves the tab for debugging when a screenshot dir is set.
func (cr *crawl) screenshot(ctx context.Context, tab browser.Page, url string) {
	dir := cr.c.screenshotDir
	if dir == "" {
		return
	}
	png, err := tab.Screenshot(ctx)
	if err != nil {
		cr.logger.Debug("screenshot failed", "url", url, "error", err)
		return
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		cr.logger.Debug("create screenshot dir", "dir", dir, "error", err)
		return
	}
	name := filepath.Join(dir, screenshotName(url))
	if err := os.WriteFile(name, png, 0o600); err != nil {
		cr.logger.Debug("write screenshot", "path", name, "error", err)
		return
	}
	cr.logger.Info("saved failure screenshot", "url", url, "path", name)
}

// screenshotName turns a URL into a file name.
func screenshotName(url string) string {
	name := url
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	if len(name) > 120 {
		name = name[:120]
	}
	return name + ".png"
}

// isHTML reports whether a page with contentType carries readable text.
// An empty content type is assumed to be HTML.
func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "", ct == "text/html", ct == "text/plain":
		return true
	case strings.HasPrefix(ct, "application/xhtml"):
		return true
	default:
		return false
	}
}
