package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
	"github.com/nao1215/docscrawl/internal/browser/fakebrowser"
	"github.com/nao1215/docscrawl/internal/interaction"
	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/robots"
	"github.com/nao1215/docscrawl/internal/scope"
)

const filler = "This page documents one feature of the product in enough words to count as real content."

// docPage returns a rendered documentation page linking to links.
func docPage(title string, links ...string) fakebrowser.PageSpec {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title></head><body><main>")
	b.WriteString("<h1>" + title + "</h1><p>" + filler + "</p>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	b.WriteString("</main></body></html>")
	return fakebrowser.PageSpec{
		HTML:     b.String(),
		Snapshot: browser.Snapshot{TextLength: 500, LinkCount: 10},
	}
}

func newTestCrawler(b browser.Browser, opts ...Option) *Crawler {
	logger := slog.New(slog.DiscardHandler)
	base := []Option{
		WithWorkers(2),
		WithDelay(0, false),
		WithPageTimeout(time.Second),
		WithTermination(10*time.Millisecond, 20*time.Millisecond, 20*time.Millisecond, 3),
		WithLinkSettle(5*time.Millisecond, 20*time.Millisecond),
		WithStaticFallback(false),
		WithProgress(0, nil),
		WithEngine(interaction.New(
			interaction.WithDelayAfterClick(0),
			interaction.WithBulkSettle(0, 0),
			interaction.WithLogger(logger),
		)),
		WithLogger(logger),
	}
	return New(b, append(base, opts...)...)
}

func runCrawl(t *testing.T, c *Crawler, root string) *model.CrawlReport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := c.Crawl(ctx, root)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	return report
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls the subtree once per page", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide":        docPage("Guide", "/guide/a", "/guide/b", "/blog/post"),
			"https://docs.example.com/guide/a":      docPage("A", "/guide", "/guide/b", "/guide/a/deep"),
			"https://docs.example.com/guide/b":      docPage("B", "/guide/a", "https://docs.example.com/guide/"),
			"https://docs.example.com/guide/a/deep": docPage("Deep", "/guide"),
			"https://docs.example.com/blog/post":    docPage("Blog"),
		})
		c := newTestCrawler(b, WithWorkers(3))
		report := runCrawl(t, c, "https://docs.example.com/guide/")

		if got := len(report.Pages); got != 4 {
			t.Fatalf("len(Pages) = %d, want 4", got)
		}
		for _, u := range []string{
			"https://docs.example.com/guide",
			"https://docs.example.com/guide/a",
			"https://docs.example.com/guide/b",
			"https://docs.example.com/guide/a/deep",
		} {
			if got := b.Visits(u); got != 1 {
				t.Errorf("Visits(%s) = %d, want 1", u, got)
			}
		}
		if got := b.Visits("https://docs.example.com/blog/post"); got != 0 {
			t.Errorf("out of scope page visited %d times", got)
		}
		if report.StopReason.Kind != model.StopCompleted {
			t.Errorf("StopReason = %v, want completed", report.StopReason)
		}
		if report.Scope != "Subtree: docs.example.com/guide/**" {
			t.Errorf("Scope = %q", report.Scope)
		}
		if deep := report.GetPage("https://docs.example.com/guide/a/deep"); deep == nil || deep.Depth != 2 || deep.ParentURL != "https://docs.example.com/guide/a" {
			t.Errorf("deep page = %+v", deep)
		}
		if got := b.OpenPages(); got != 0 {
			t.Errorf("OpenPages() = %d after crawl, want 0", got)
		}
		if got := c.State(); got != StateTerminated {
			t.Errorf("State() = %v, want terminated", got)
		}
	})

	t.Run("respects max depth", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide":     docPage("Guide", "/guide/a"),
			"https://docs.example.com/guide/a":   docPage("A", "/guide/a/b"),
			"https://docs.example.com/guide/a/b": docPage("B"),
		})
		report := runCrawl(t, newTestCrawler(b, WithMaxDepth(1)), "https://docs.example.com/guide")

		if got := len(report.Pages); got != 2 {
			t.Errorf("len(Pages) = %d, want 2", got)
		}
		if got := b.Visits("https://docs.example.com/guide/a/b"); got != 0 {
			t.Errorf("page beyond max depth visited %d times", got)
		}
		// Links of a page at max depth are reported though not followed.
		leaf := report.GetPage("https://docs.example.com/guide/a")
		if leaf == nil || len(leaf.Links) != 1 || leaf.Links[0] != "https://docs.example.com/guide/a/b" {
			t.Errorf("leaf page = %+v, want its link reported", leaf)
		}
		if got := report.Metrics.LinksFound; got != 2 {
			t.Errorf("LinksFound = %d, want 2", got)
		}
	})

	t.Run("full frontier drops links without marking them queued", func(t *testing.T) {
		t.Parallel()

		// The root offers a, b and orphan with room for one. b is dropped
		// and found again through a; orphan has no other referrer.
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide":            docPage("Guide", "/guide/a", "/guide/b", "/guide/x/y/orphan"),
			"https://docs.example.com/guide/a":          docPage("A", "/guide/b"),
			"https://docs.example.com/guide/b":          docPage("B"),
			"https://docs.example.com/guide/x/y/orphan": docPage("Orphan"),
		})
		c := newTestCrawler(b, WithWorkers(1), WithQueueCapacity(1))
		report := runCrawl(t, c, "https://docs.example.com/guide")

		if got := b.Visits("https://docs.example.com/guide/a"); got != 1 {
			t.Errorf("Visits(a) = %d, want 1", got)
		}
		if got := b.Visits("https://docs.example.com/guide/b"); got != 1 {
			t.Errorf("dropped link rediscovered later visited %d times, want 1", got)
		}
		if got := b.Visits("https://docs.example.com/guide/x/y/orphan"); got != 0 {
			t.Errorf("dropped orphan visited %d times, want 0", got)
		}
		root := report.GetPage("https://docs.example.com/guide")
		if root == nil || len(root.Links) != 3 {
			t.Errorf("root page = %+v, want all 3 links reported", root)
		}
		if report.StopReason.Kind != model.StopCompleted {
			t.Errorf("StopReason = %v, want completed", report.StopReason)
		}
	})

	t.Run("never exceeds max pages", func(t *testing.T) {
		t.Parallel()

		pages := map[string]fakebrowser.PageSpec{}
		var links []string
		for i := range 20 {
			link := fmt.Sprintf("/guide/p%d", i)
			links = append(links, link)
			pages["https://docs.example.com"+link] = docPage(fmt.Sprintf("Page %d", i), "/guide")
		}
		pages["https://docs.example.com/guide"] = docPage("Guide", links...)
		b := fakebrowser.New(pages)

		report := runCrawl(t, newTestCrawler(b, WithMaxPages(5), WithWorkers(4)), "https://docs.example.com/guide")

		if got := report.UsefulPages(); got != 5 {
			t.Errorf("UsefulPages() = %d, want 5", got)
		}
		if report.StopReason.Kind != model.StopMaxPages {
			t.Errorf("StopReason = %v, want max pages", report.StopReason)
		}
		if report.StopReason.Message != "MAX_PAGES limit reached (5)" {
			t.Errorf("StopReason.Message = %q", report.StopReason.Message)
		}
	})

	t.Run("visits densely linked pages at most once", func(t *testing.T) {
		t.Parallel()

		var links []string
		for i := range 8 {
			links = append(links, fmt.Sprintf("/guide/n%d", i))
		}
		pages := map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide": docPage("Guide", links...),
		}
		for i, l := range links {
			pages["https://docs.example.com"+l] = docPage(fmt.Sprintf("Node %d", i), links...)
		}
		b := fakebrowser.New(pages)

		report := runCrawl(t, newTestCrawler(b, WithWorkers(6)), "https://docs.example.com/guide")

		if got := len(report.Pages); got != 9 {
			t.Errorf("len(Pages) = %d, want 9", got)
		}
		for u := range pages {
			if got := b.Visits(u); got != 1 {
				t.Errorf("Visits(%s) = %d, want 1", u, got)
			}
		}
	})
}

func TestCrawler_Scope(t *testing.T) {
	t.Parallel()

	t.Run("deny pattern rejects viewer links", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.x.com/guide":                docPage("Guide", "/guide/viewer/att.pdf", "/guide/viewer/page", "/guide/intro"),
			"https://docs.x.com/guide/intro":          docPage("Intro"),
			"https://docs.x.com/guide/viewer/page":    docPage("Viewer"),
			"https://docs.x.com/guide/viewer/att.pdf": docPage("Attachment"),
		})
		c := newTestCrawler(b, WithScopeOptions(scope.WithDenyPatterns(`/viewer/`)))
		report := runCrawl(t, c, "https://docs.x.com/guide")

		if got := b.Visits("https://docs.x.com/guide/viewer/att.pdf") + b.Visits("https://docs.x.com/guide/viewer/page"); got != 0 {
			t.Errorf("denied pages visited %d times", got)
		}
		if b.Visits("https://docs.x.com/guide/intro") != 1 {
			t.Error("allowed page not visited")
		}
		root := report.GetPage("https://docs.x.com/guide")
		if root == nil || len(root.Links) != 1 || root.Links[0] != "https://docs.x.com/guide/intro" {
			t.Errorf("root links = %v, want only the intro page", root)
		}
	})

	t.Run("start page without in-scope links widens to host", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://x.com/product/start.html": docPage("Start", "/help/a", "/help/b", "/help/c"),
			"https://x.com/help/a":             docPage("Help A"),
			"https://x.com/help/b":             docPage("Help B"),
			"https://x.com/help/c":             docPage("Help C"),
		})
		report := runCrawl(t, newTestCrawler(b), "https://x.com/product/start.html")

		if !report.ScopeWidened {
			t.Error("ScopeWidened = false, want true")
		}
		if report.Scope != "Entire domain: x.com" {
			t.Errorf("Scope = %q", report.Scope)
		}
		for _, u := range []string{"https://x.com/help/a", "https://x.com/help/b", "https://x.com/help/c"} {
			if got := b.Visits(u); got != 1 {
				t.Errorf("Visits(%s) = %d, want 1", u, got)
			}
		}
	})

	t.Run("no widening when start page has in-scope links", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://x.com/product/start.html": docPage("Start", "/product/next", "/help/a"),
			"https://x.com/product/next":       docPage("Next"),
			"https://x.com/help/a":             docPage("Help A"),
		})
		report := runCrawl(t, newTestCrawler(b), "https://x.com/product/start.html")

		if report.ScopeWidened {
			t.Error("ScopeWidened = true, want false")
		}
		if got := b.Visits("https://x.com/help/a"); got != 0 {
			t.Errorf("out of scope page visited %d times", got)
		}
	})

	t.Run("external links alone do not widen", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://x.com/product/start.html": docPage("Start", "https://github.com/x/product", "https://twitter.com/x"),
		})
		report := runCrawl(t, newTestCrawler(b), "https://x.com/product/start.html")

		if report.ScopeWidened {
			t.Error("ScopeWidened = true, want false")
		}
		if report.Scope == "Entire domain: x.com" {
			t.Errorf("Scope = %q, want the start subtree", report.Scope)
		}
		if got := len(report.Pages); got != 1 {
			t.Errorf("len(Pages) = %d, want 1", got)
		}
	})

	t.Run("redirect of the start page rebases the scope", func(t *testing.T) {
		t.Parallel()

		landing := docPage("Landing", "/guide/a")
		landing.FinalURL = "https://docs.y.com/guide/index.html"
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://x.com/docs":         landing,
			"https://docs.y.com/guide/a": docPage("A"),
		})
		report := runCrawl(t, newTestCrawler(b), "https://x.com/docs")

		if report.Host != "docs.y.com" {
			t.Errorf("Host = %q, want docs.y.com", report.Host)
		}
		if !report.ScopeWidened {
			t.Error("ScopeWidened = false after redirect")
		}
		if got := b.Visits("https://docs.y.com/guide/a"); got != 1 {
			t.Errorf("Visits(landing child) = %d, want 1", got)
		}
		if p := report.GetPage("https://x.com/docs"); p == nil || p.FinalURL != "https://docs.y.com/guide/index.html" {
			t.Errorf("start page = %+v", p)
		}
	})
}

func TestCrawler_QualityGate(t *testing.T) {
	t.Parallel()

	loading := fakebrowser.PageSpec{
		HTML:     "<html><body><main><p>Loading application...</p></main></body></html>",
		Snapshot: browser.Snapshot{TextLength: 300, LinkCount: 10},
	}
	jsonPage := fakebrowser.PageSpec{
		HTML:     `<html><body><pre>{"items": [1, 2, 3], "total": 3}</pre></body></html>`,
		Snapshot: browser.Snapshot{TextLength: 300, LinkCount: 10},
	}
	pdf := docPage("Manual")
	pdf.ContentType = "application/pdf"

	b := fakebrowser.New(map[string]fakebrowser.PageSpec{
		"https://docs.example.com/guide":         docPage("Guide", "/guide/loading", "/guide/api", "/guide/dup?v=1", "/guide/dup?v=2", "/guide/manual"),
		"https://docs.example.com/guide/loading": loading,
		"https://docs.example.com/guide/api":     jsonPage,
		"https://docs.example.com/guide/dup?v=1": docPage("Same"),
		"https://docs.example.com/guide/dup?v=2": docPage("Same"),
		"https://docs.example.com/guide/manual":  pdf,
	})
	report := runCrawl(t, newTestCrawler(b, WithMaxPages(3)), "https://docs.example.com/guide")

	tests := []struct {
		url    string
		reason string
	}{
		{"https://docs.example.com/guide/loading", "application still loading"},
		{"https://docs.example.com/guide/api", "raw JSON response"},
		{"https://docs.example.com/guide/manual", "non-HTML content type application/pdf"},
	}
	for _, tt := range tests {
		p := report.GetPage(tt.url)
		if p == nil {
			t.Errorf("page %s missing from report", tt.url)
			continue
		}
		if !p.Skipped || p.Status != model.StatusSkipped || p.SkipReason != tt.reason {
			t.Errorf("page %s: skipped=%v status=%v reason=%q, want reason %q", tt.url, p.Skipped, p.Status, p.SkipReason, tt.reason)
		}
		if p.WordCount != 0 || p.Text != "" {
			t.Errorf("skipped page %s kept content", tt.url)
		}
	}

	dup1 := report.GetPage("https://docs.example.com/guide/dup?v=1")
	dup2 := report.GetPage("https://docs.example.com/guide/dup?v=2")
	if dup1 == nil || dup2 == nil {
		t.Fatal("duplicate pages missing from report")
	}
	if dup1.Skipped == dup2.Skipped {
		t.Errorf("want exactly one duplicate skipped, got %v and %v", dup1.Skipped, dup2.Skipped)
	}
	for _, p := range []*model.Page{dup1, dup2} {
		if p.Skipped && !strings.HasPrefix(p.SkipReason, "duplicate of ") {
			t.Errorf("duplicate SkipReason = %q", p.SkipReason)
		}
	}

	// Six pages were attempted but only two count against the budget of 3.
	if got := report.UsefulPages(); got != 2 {
		t.Errorf("UsefulPages() = %d, want 2", got)
	}
	if report.StopReason.Kind != model.StopCompleted {
		t.Errorf("StopReason = %v, want completed", report.StopReason)
	}
	if got := report.CountByStatus(model.StatusSkipped); got != 4 {
		t.Errorf("skipped pages = %d, want 4", got)
	}
}

func TestCrawler_Failures(t *testing.T) {
	t.Parallel()

	t.Run("timeout without fallback", func(t *testing.T) {
		t.Parallel()

		slow := docPage("Slow")
		slow.Delay = 200 * time.Millisecond
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide":      docPage("Guide", "/guide/slow", "/guide/gone"),
			"https://docs.example.com/guide/slow": slow,
		})
		report := runCrawl(t, newTestCrawler(b, WithPageTimeout(20*time.Millisecond)), "https://docs.example.com/guide")

		slowPage := report.GetPage("https://docs.example.com/guide/slow")
		if slowPage == nil || slowPage.Status != model.StatusTimeout || slowPage.Error != "Timeout" {
			t.Errorf("slow page = %+v", slowPage)
		}
		gone := report.GetPage("https://docs.example.com/guide/gone")
		if gone == nil || gone.Status != model.StatusFailed || gone.Error != "HTTP 404" {
			t.Errorf("missing page = %+v", gone)
		}
		if got := len(report.Errors); got != 2 {
			t.Fatalf("len(Errors) = %d, want 2", got)
		}
		for _, e := range report.Errors {
			if e.Depth != 1 {
				t.Errorf("error %+v: Depth = %d, want 1", e, e.Depth)
			}
		}
		if report.StopReason.Kind != model.StopCompleted {
			t.Errorf("page failures ended the crawl: %v", report.StopReason)
		}
	})

	t.Run("static fallback recovers a failed page", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/guide":
				select {
				case headers <- r.Header.Clone():
				default:
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprintf(w, `<html><head><title>Static Guide</title></head><body><main><h1>Static Guide</h1><p>%s</p><a href="/guide/next">next</a></main></body></html>`, filler)
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(srv.Close)

		root := srv.URL + "/guide"
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			root:             {Status: http.StatusInternalServerError},
			root + "/next":   docPage("Next", "/guide/broken"),
			root + "/broken": {Status: http.StatusBadGateway},
		})

		c := newTestCrawler(b,
			WithStaticFallback(true),
			WithUserAgent("docscrawl-test"),
			WithRequestHeaders(nil, "session=abc"),
		)
		report := runCrawl(t, c, root)

		p := report.GetPage(root)
		if p == nil {
			t.Fatal("root page missing")
		}
		if !p.StaticFallback || p.Status != model.StatusOK || p.Title != "Static Guide" {
			t.Errorf("root page = %+v", p)
		}
		if got := b.Visits(root + "/next"); got != 1 {
			t.Errorf("link found by static fallback visited %d times, want 1", got)
		}
		h := <-headers
		if h.Get("User-Agent") != "docscrawl-test" || h.Get("Cookie") != "session=abc" {
			t.Errorf("static request headers: User-Agent=%q Cookie=%q", h.Get("User-Agent"), h.Get("Cookie"))
		}

		broken := report.GetPage(root + "/broken")
		if broken == nil || broken.Status != model.StatusFailed || broken.Error != "HTTP 404 (static)" {
			t.Errorf("broken page = %+v", broken)
		}
	})

	t.Run("retries before giving up", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide": {Err: errors.New("connection reset")},
		})
		c := newTestCrawler(b, WithMaxRetries(2), WithRetryBackoff(time.Millisecond, time.Millisecond))
		report := runCrawl(t, c, "https://docs.example.com/guide")

		if got := b.Visits("https://docs.example.com/guide"); got != 3 {
			t.Errorf("Visits() = %d, want 3", got)
		}
		if report.Metrics.PagesRetried != 2 {
			t.Errorf("PagesRetried = %d, want 2", report.Metrics.PagesRetried)
		}
		p := report.GetPage("https://docs.example.com/guide")
		if p == nil || p.Status != model.StatusFailed || !strings.Contains(p.Error, "connection reset") {
			t.Errorf("page = %+v", p)
		}
	})

	t.Run("screenshot of failed page", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide": {Status: http.StatusServiceUnavailable},
		})
		runCrawl(t, newTestCrawler(b, WithScreenshotDir(dir)), "https://docs.example.com/guide")

		matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 1 {
			t.Errorf("screenshots = %v, want 1", matches)
		}
	})
}

func TestCrawler_Expansion(t *testing.T) {
	t.Parallel()

	var expanded strings.Builder
	expanded.WriteString("<html><body><main><h1>Reference</h1><p>" + filler + "</p>")
	for i := range 5 {
		fmt.Fprintf(&expanded, `<a href="/guide/topic%d">topic %d</a>`, i, i)
	}
	expanded.WriteString("</main></body></html>")

	tree := fakebrowser.PageSpec{
		HTML:     "<html><body><main><h1>Reference</h1><p>" + filler + "</p></main></body></html>",
		Snapshot: browser.Snapshot{TextLength: 120, LinkCount: 3},
		Elements: []fakebrowser.ElementSpec{{
			Name:      "expand-all",
			Selectors: []string{`button[title*="Expand" i]`},
			Info:      browser.ElementInfo{Tag: "BUTTON", Title: "Expand all"},
			OnClick: func(s *fakebrowser.State) {
				s.Snapshot.LinkCount = 40
				s.Snapshot.TextLength = 4000
				s.HTML = expanded.String()
			},
		}},
	}
	pages := map[string]fakebrowser.PageSpec{"https://docs.example.com/guide": tree}
	for i := range 5 {
		pages[fmt.Sprintf("https://docs.example.com/guide/topic%d", i)] = docPage(fmt.Sprintf("Topic %d", i))
	}
	b := fakebrowser.New(pages)

	report := runCrawl(t, newTestCrawler(b), "https://docs.example.com/guide")

	root := report.GetPage("https://docs.example.com/guide")
	if root == nil {
		t.Fatal("root page missing")
	}
	if root.Complexity != "js" || root.MeaningfulClicks != 1 || root.ClicksAttempted != 1 {
		t.Errorf("root complexity=%q meaningful=%d attempted=%d", root.Complexity, root.MeaningfulClicks, root.ClicksAttempted)
	}
	if got := b.Clicks("https://docs.example.com/guide", "expand-all"); got != 1 {
		t.Errorf("expand-all clicked %d times, want 1", got)
	}
	for i := range 5 {
		if got := b.Visits(fmt.Sprintf("https://docs.example.com/guide/topic%d", i)); got != 1 {
			t.Errorf("revealed topic %d visited %d times, want 1", i, got)
		}
	}
}

func TestCrawler_ExpansionGating(t *testing.T) {
	t.Parallel()

	// menu would reveal five more links if anything clicked it.
	menu := func(onClick func(*fakebrowser.State)) fakebrowser.ElementSpec {
		return fakebrowser.ElementSpec{
			Name:      "menu",
			Selectors: []string{`button:not([disabled])`},
			Info:      browser.ElementInfo{Tag: "BUTTON", Text: "Menu", Top: 10},
			OnClick: func(s *fakebrowser.State) {
				s.Snapshot.LinkCount += 5
				s.Snapshot.TextLength += 500
				if onClick != nil {
					onClick(s)
				}
			},
		}
	}

	t.Run("static page is not expanded", func(t *testing.T) {
		t.Parallel()

		static := docPage("Guide")
		static.Snapshot = browser.Snapshot{TextLength: 5000, LinkCount: 60}
		static.Elements = []fakebrowser.ElementSpec{menu(nil)}
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{"https://docs.example.com/guide": static})

		report := runCrawl(t, newTestCrawler(b), "https://docs.example.com/guide")

		p := report.GetPage("https://docs.example.com/guide")
		if p == nil {
			t.Fatal("page missing")
		}
		if p.Complexity != "html" || p.ClicksAttempted != 0 {
			t.Errorf("complexity=%q attempted=%d, want html and no clicks", p.Complexity, p.ClicksAttempted)
		}
		if got := b.Clicks("https://docs.example.com/guide", "menu"); got != 0 {
			t.Errorf("menu clicked %d times on a static page", got)
		}
	})

	t.Run("unlimited page budget still expands", func(t *testing.T) {
		t.Parallel()

		sparse := docPage("Guide")
		sparse.Snapshot = browser.Snapshot{TextLength: 100, LinkCount: 2}
		sparse.Elements = []fakebrowser.ElementSpec{menu(nil)}
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{"https://docs.example.com/guide": sparse})

		report := runCrawl(t, newTestCrawler(b, WithMaxPages(0)), "https://docs.example.com/guide")

		p := report.GetPage("https://docs.example.com/guide")
		if p == nil || p.Complexity != "js" || p.ClicksAttempted == 0 {
			t.Errorf("page = %+v, want expansion to run", p)
		}
		if got := b.Clicks("https://docs.example.com/guide", "menu"); got != 1 {
			t.Errorf("menu clicked %d times, want 1", got)
		}
	})

	t.Run("stop during expansion lets the page finish", func(t *testing.T) {
		t.Parallel()

		var c *Crawler
		stop := func(*fakebrowser.State) { c.Stop() }

		second := menu(stop)
		second.Name = "second"
		second.Info.Text = "More"
		second.Info.Top = 20

		sparse := docPage("Guide")
		sparse.Snapshot = browser.Snapshot{TextLength: 100, LinkCount: 2}
		sparse.Elements = []fakebrowser.ElementSpec{menu(stop), second}
		b := fakebrowser.New(map[string]fakebrowser.PageSpec{"https://docs.example.com/guide": sparse})

		c = newTestCrawler(b)
		report := runCrawl(t, c, "https://docs.example.com/guide")

		if report.StopReason.Kind != model.StopUser {
			t.Errorf("StopReason = %v, want user stop", report.StopReason)
		}
		for _, name := range []string{"menu", "second"} {
			if got := b.Clicks("https://docs.example.com/guide", name); got != 1 {
				t.Errorf("%s clicked %d times, want 1", name, got)
			}
		}
		if p := report.GetPage("https://docs.example.com/guide"); p == nil || p.ClicksAttempted != 2 || p.Title != "Guide" {
			t.Errorf("page = %+v, want both clicks and extracted content", p)
		}
	})
}

func TestCrawl_WorkerWaitsOutGracePeriod(t *testing.T) {
	t.Parallel()

	const late = "https://docs.example.com/guide/late"
	b := fakebrowser.New(map[string]fakebrowser.PageSpec{late: docPage("Late")})
	c := newTestCrawler(b, WithTermination(time.Second, 200*time.Millisecond, 5*time.Millisecond, 3))
	filter, err := scope.New("https://docs.example.com/guide")
	if err != nil {
		t.Fatal(err)
	}

	cr := newCrawl(context.Background(), c, filter, "https://docs.example.com/guide")
	defer cr.cancel()
	cr.mon.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cr.worker(0)
	}()

	// The worker sees an idle, empty frontier almost at once. A link
	// offered while it confirms must still be crawled by it.
	time.Sleep(50 * time.Millisecond)
	cr.mu.Lock()
	cr.offer(entry{url: late, depth: 1, parent: "https://docs.example.com/guide"})
	cr.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cr.finish(model.StopUser)
		<-done
		t.Fatal("worker did not exit on an exhausted frontier")
	}
	if got := b.Visits(late); got != 1 {
		t.Errorf("Visits(late) = %d, want 1", got)
	}
}

func TestCrawler_Robots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /guide/private\n")
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	root := srv.URL + "/guide"
	b := fakebrowser.New(map[string]fakebrowser.PageSpec{
		root:              docPage("Guide", "/guide/public", "/guide/private"),
		root + "/public":  docPage("Public"),
		root + "/private": docPage("Private"),
	})
	runCrawl(t, newTestCrawler(b, WithRobots(robots.New("docscrawl"))), root)

	if got := b.Visits(root + "/private"); got != 0 {
		t.Errorf("disallowed page visited %d times", got)
	}
	if got := b.Visits(root + "/public"); got != 1 {
		t.Errorf("allowed page visited %d times, want 1", got)
	}
}

func TestCrawler_Stop(t *testing.T) {
	t.Parallel()

	chain := func() map[string]fakebrowser.PageSpec {
		pages := map[string]fakebrowser.PageSpec{}
		for i := range 30 {
			u := "https://docs.example.com/guide"
			if i > 0 {
				u = fmt.Sprintf("https://docs.example.com/guide/s%d", i)
			}
			p := docPage(fmt.Sprintf("Step %d", i), fmt.Sprintf("/guide/s%d", i+1))
			p.Delay = 10 * time.Millisecond
			pages[u] = p
		}
		return pages
	}

	t.Run("Stop ends a running crawl", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(chain())
		c := newTestCrawler(b, WithWorkers(1), WithMaxDepth(50))

		done := make(chan *model.CrawlReport, 1)
		go func() {
			report, _ := c.Crawl(context.Background(), "https://docs.example.com/guide")
			done <- report
		}()

		deadline := time.Now().Add(5 * time.Second)
		for b.TotalVisits() < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		c.Stop()

		report := <-done
		if report.StopReason.Kind != model.StopUser {
			t.Errorf("StopReason = %v, want user stop", report.StopReason)
		}
		if got := len(report.Pages); got >= 30 {
			t.Errorf("len(Pages) = %d, want fewer than 30", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		b := fakebrowser.New(chain())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := newTestCrawler(b).Crawl(ctx, "https://docs.example.com/guide")
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.StopReason.Kind != model.StopUser {
			t.Errorf("StopReason = %v, want user stop", report.StopReason)
		}
	})

	t.Run("Stop without a crawl is a no-op", func(t *testing.T) {
		t.Parallel()
		c := newTestCrawler(fakebrowser.New(nil))
		c.Stop()
		if got := c.State(); got != StateIdle {
			t.Errorf("State() = %v, want idle", got)
		}
	})
}

func TestCrawler_InvalidStart(t *testing.T) {
	t.Parallel()

	t.Run("invalid root URL", func(t *testing.T) {
		t.Parallel()
		report, err := newTestCrawler(fakebrowser.New(nil)).Crawl(context.Background(), "ftp://docs.example.com/")
		if err == nil {
			t.Fatal("Crawl() error = nil")
		}
		if report == nil || report.StopReason.Kind != model.StopError {
			t.Errorf("report = %+v, want error stop reason", report)
		}
	})

	t.Run("no browser", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil).Crawl(context.Background(), "https://docs.example.com/")
		if !errors.Is(err, ErrNoBrowser) {
			t.Errorf("Crawl() error = %v, want ErrNoBrowser", err)
		}
	})
}
