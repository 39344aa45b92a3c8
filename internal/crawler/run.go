package crawler

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nao1215/docscrawl/internal/model"
	"github.com/nao1215/docscrawl/internal/monitor"
	"github.com/nao1215/docscrawl/internal/scope"
)

// entry is one frontier item.
type entry struct {
	url         string
	depth       int
	parent      string
	sectionPath []string
}

// crawl is the state of one Crawl call.
type crawl struct {
	c       *Crawler
	logger  *slog.Logger
	rootURL string

	// ctx is the caller's context. pageCtx survives its cancellation so that
	// in-flight pages finish; stopCtx is cancelled when the crawl stops.
	ctx     context.Context
	pageCtx context.Context
	stopCtx context.Context
	cancel  context.CancelFunc

	queue   chan entry
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	mon     *monitor.Monitor

	mu           sync.Mutex
	filter       *scope.Filter
	visited      map[string]struct{}
	queued       map[string]struct{}
	pages        []model.Page
	errors       []model.PageError
	fingerprints map[string]string
	rejected     []entry
	firstDone    bool
	widened      bool
	useful       int
	skipped      int
	stopped      bool
	stopKind     model.StopKind
}

func newCrawl(ctx context.Context, c *Crawler, filter *scope.Filter, rootURL string) *crawl {
	stopCtx, cancel := context.WithCancel(ctx)

	limit := rate.Inf
	if c.requestsPerSecond > 0 {
		limit = rate.Limit(c.requestsPerSecond)
	}

	return &crawl{
		c:       c,
		logger:  c.logger,
		rootURL: rootURL,
		ctx:     ctx,
		pageCtx: context.WithoutCancel(ctx),
		stopCtx: stopCtx,
		cancel:  cancel,
		queue:   make(chan entry, c.queueCapacity),
		limiter: rate.NewLimiter(limit, 1),
		sem:     semaphore.NewWeighted(int64(c.workers)),
		mon: monitor.New(
			monitor.WithMaxWorkers(c.workers),
			monitor.WithLogger(c.logger),
		),
		filter:       filter,
		visited:      make(map[string]struct{}),
		queued:       make(map[string]struct{}),
		fingerprints: make(map[string]string),
	}
}

// run executes the crawl and returns when every worker has exited.
func (cr *crawl) run() {
	c := cr.c
	defer cr.cancel()

	stopOnCancel := context.AfterFunc(cr.ctx, func() {
		cr.finish(model.StopUser)
	})
	defer stopOnCancel()

	cr.mon.Start()
	cr.filter.LogScope()

	root := cr.filter.Root()
	if c.robots != nil {
		cr.applyCrawlDelay(root.String())
	}

	start, err := cr.filter.Clean(cr.rootURL)
	if err != nil {
		start = root
	}
	cr.mu.Lock()
	cr.offer(entry{url: start.String()})
	cr.mu.Unlock()

	progressCtx, stopProgress := context.WithCancel(cr.pageCtx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		cr.mon.Run(progressCtx, c.reportInterval, c.progress)
	}()

	workersDone := make(chan struct{})
	go cr.watch(workersDone)

	var g errgroup.Group
	for id := range c.workers {
		g.Go(func() error {
			cr.worker(id)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error
	close(workersDone)

	stopProgress()
	<-progressDone
}

// applyCrawlDelay lowers the politeness rate to the Crawl-delay robots.txt
// declares for rawURL's host.
func (cr *crawl) applyCrawlDelay(rawURL string) {
	d := cr.c.robots.CrawlDelay(cr.pageCtx, rawURL)
	if d <= 0 {
		return
	}
	limit := rate.Every(d)
	if limit < cr.limiter.Limit() {
		cr.limiter.SetLimit(limit)
		cr.logger.Info("politeness rate lowered by robots.txt", "crawl_delay", d)
	}
}

// finish records why the crawl stops and cancels the stop context.
// The first reason wins.
func (cr *crawl) finish(kind model.StopKind) {
	cr.mu.Lock()
	if cr.stopped {
		cr.mu.Unlock()
		return
	}
	cr.stopped = true
	cr.stopKind = kind
	cr.mu.Unlock()

	cr.c.setState(StateDraining)
	cr.logger.Info("crawl stopping", "reason", kind.String())
	cr.cancel()
}

func (cr *crawl) stopping() bool {
	return cr.stopCtx.Err() != nil
}

func (cr *crawl) budgetReached() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.budgetReachedLocked()
}

func (cr *crawl) budgetReachedLocked() bool {
	return cr.c.maxPages > 0 && cr.useful >= cr.c.maxPages
}

// idle reports whether the frontier is empty and no worker holds a page.
func (cr *crawl) idle() bool {
	return len(cr.queue) == 0 && cr.mon.ActiveWorkers() == 0
}

// watch detects frontier exhaustion and the page budget.
func (cr *crawl) watch(workersDone <-chan struct{}) {
	ticker := time.NewTicker(cr.c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-workersDone:
			return
		case <-cr.stopCtx.Done():
			return
		case <-ticker.C:
		}

		if cr.budgetReached() {
			cr.finish(model.StopMaxPages)
			return
		}
		if !cr.idle() {
			continue
		}

		// A worker may sit between dequeue and WorkerStarted; confirm after grace.
		select {
		case <-workersDone:
			return
		case <-cr.stopCtx.Done():
			return
		case <-time.After(cr.c.gracePeriod):
		}
		if cr.idle() {
			cr.finish(model.StopCompleted)
			return
		}
	}
}

func (cr *crawl) worker(id int) {
	c := cr.c
	logger := cr.logger.With("worker", id)
	emptyPolls := 0

	for {
		if cr.stopping() {
			return
		}
		if cr.budgetReached() {
			cr.finish(model.StopMaxPages)
			return
		}

		var e entry
		select {
		case <-cr.stopCtx.Done():
			return
		case e = <-cr.queue:
			emptyPolls = 0
		case <-time.After(c.dequeueTimeout):
			emptyPolls++
			if !cr.exhausted(emptyPolls) {
				continue
			}
			// Another worker may sit between dequeue and WorkerStarted;
			// confirm after grace so the pool does not shrink under it.
			if !cr.wait(c.gracePeriod) {
				return
			}
			if cr.exhausted(emptyPolls) {
				logger.Debug("worker exiting on empty frontier", "empty_polls", emptyPolls)
				return
			}
			continue
		}

		cr.mon.WorkerStarted()
		cr.mon.UpdateQueueSize(len(cr.queue))
		cr.handle(e, logger)
		cr.mon.WorkerFinished()

		cr.pause()
	}
}

// exhausted reports whether a worker that polled emptyPolls times in a row
// may exit.
func (cr *crawl) exhausted(emptyPolls int) bool {
	return cr.mon.ActiveWorkers() == 0 && (len(cr.queue) == 0 || emptyPolls >= cr.c.maxEmptyPolls)
}

// wait sleeps for d and reports false when the crawl stopped meanwhile.
func (cr *crawl) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-cr.stopCtx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle processes one frontier entry and commits its outcome.
func (cr *crawl) handle(e entry, logger *slog.Logger) {
	if e.depth > cr.c.maxDepth {
		return
	}
	if err := cr.sem.Acquire(cr.stopCtx, 1); err != nil {
		return
	}
	start := time.Now()
	out := cr.process(e)
	cr.sem.Release(1)

	enqueueStart := time.Now()
	added, ok := cr.commit(out, e)
	if !ok {
		logger.Info("page discarded, budget already reached", "url", e.url)
		return
	}

	out.timing.URL = e.url
	out.timing.Enqueue = time.Since(enqueueStart)
	out.timing.Total = time.Since(start)
	out.timing.WordCount = out.page.WordCount
	out.timing.LinkCount = len(out.page.Links)
	out.timing.Status = out.page.Status
	cr.mon.RecordPage(out.timing)
	cr.mon.RecordEnqueue(added)
	cr.mon.UpdateQueueSize(len(cr.queue))

	logger.Debug("page done",
		"url", e.url,
		"depth", e.depth,
		"status", out.page.Status.String(),
		"words", out.page.WordCount,
		"links", len(out.page.Links),
		"enqueued", added,
	)
}

// commit records the page and enqueues its links. It reports false when
// the page was dropped because the budget filled up while it was processed.
func (cr *crawl) commit(out outcome, e entry) (int, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	page := out.page
	cr.dedupe(page)

	if !page.Skipped && cr.budgetReachedLocked() {
		return 0, false
	}

	first := !cr.firstDone
	cr.firstDone = true

	var candidates []string
	if !page.Skipped || len(out.links) > 0 {
		candidates = cr.collectLinks(page, out.links, first)
	}
	added := 0
	if e.depth < cr.c.maxDepth {
		added = cr.enqueueLinks(page, candidates, e, first)
	}
	if first {
		cr.rejected = nil
	}

	cr.pages = append(cr.pages, *page)
	if page.Skipped {
		cr.skipped++
	} else {
		cr.useful++
	}
	if page.Status.IsFailure() {
		cr.errors = append(cr.errors, model.PageError{URL: page.URL, Error: page.Error, Depth: page.Depth})
	}
	return added, true
}

// collectLinks cleans links, sets page.Links to the in-scope ones, highest
// score first, and returns them. On the first page, rejected links of the
// root host are kept in cr.rejected for scope widening. Called with mu held.
func (cr *crawl) collectLinks(page *model.Page, links []string, first bool) []string {
	type candidate struct {
		url   string
		score float64
	}
	seen := make(map[string]struct{}, len(links))
	candidates := make([]candidate, 0, len(links))
	for _, link := range links {
		cu, err := cr.filter.Clean(link)
		if err != nil {
			continue
		}
		u := cu.String()
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if !cr.filter.AcceptCanonical(cu) {
			if first && cu.Host == cr.filter.Host() {
				cr.rejected = append(cr.rejected, entry{url: u, depth: page.Depth + 1, parent: page.URL, sectionPath: page.SectionPath})
			}
			continue
		}
		candidates = append(candidates, candidate{url: u, score: cr.filter.Score(u)})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.score, a.score)
	})

	page.Links = make([]string, 0, len(candidates))
	for _, cand := range candidates {
		page.Links = append(page.Links, cand.url)
	}
	return page.Links
}

// enqueueLinks offers the collected links of page to the frontier and
// widens the scope when the start page had none. Called with mu held.
func (cr *crawl) enqueueLinks(page *model.Page, links []string, e entry, first bool) int {
	limit := 3 * cr.c.maxPages
	if cr.c.maxPages > 0 && len(cr.queue) >= limit {
		cr.logger.Debug("frontier saturated, not enqueueing", "url", page.URL, "queue", len(cr.queue))
		return 0
	}

	added := 0
	for _, u := range links {
		if cr.offer(entry{url: u, depth: e.depth + 1, parent: page.URL, sectionPath: page.SectionPath}) {
			added++
		}
	}

	// A start page whose same-host links all point outside the subtree
	// usually means the site keeps its docs under a sibling path; widen to
	// the whole host.
	if first && added == 0 && len(cr.rejected) > 0 && cr.filter.WidenToDomain() {
		cr.widened = true
		for _, r := range cr.rejected {
			cu, err := cr.filter.Clean(r.url)
			if err != nil || !cr.filter.AcceptCanonical(cu) {
				continue
			}
			page.Links = append(page.Links, r.url)
			if cr.offer(r) {
				added++
			}
		}
		cr.logger.Info("start page had no in-scope links, scope widened",
			"scope", cr.filter.Description(),
			"recovered", added,
		)
	}
	return added
}

// offer puts e on the frontier unless it was seen before. Called with mu held.
func (cr *crawl) offer(e entry) bool {
	if _, ok := cr.visited[e.url]; ok {
		return false
	}
	if _, ok := cr.queued[e.url]; ok {
		return false
	}
	if cr.c.robots != nil && !cr.c.robots.Allowed(cr.pageCtx, e.url) {
		return false
	}
	select {
	case cr.queue <- e:
		cr.queued[e.url] = struct{}{}
		return true
	default:
		cr.logger.Warn("dropping link", "url", e.url, "error", ErrQueueFull)
		return false
	}
}

// markVisited records that url is being processed.
func (cr *crawl) markVisited(url string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.visited[url] = struct{}{}
}

// pause applies the politeness delay after a page.
func (cr *crawl) pause() {
	d := cr.c.delay
	if cr.c.humanized {
		d += time.Duration(100+rand.IntN(701)) * time.Millisecond
	}
	if d > 0 {
		cr.wait(d)
	}
}

// reason returns the final stop reason.
func (cr *crawl) reason() model.StopReason {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	switch {
	case (cr.stopped && cr.stopKind == model.StopUser) || cr.ctx.Err() != nil:
		return model.StopUserReason()
	case cr.budgetReachedLocked():
		return model.StopMaxPagesReason(cr.c.maxPages)
	default:
		return model.StopCompletedReason(cr.useful, cr.skipped, cr.c.maxPages)
	}
}

// fill copies the crawl results into report.
func (cr *crawl) fill(report *model.CrawlReport) {
	reason := cr.reason()

	cr.mu.Lock()
	report.Host = cr.filter.Host()
	report.Scope = cr.filter.Description()
	report.ScopeWidened = cr.widened
	report.Pages = append(report.Pages, cr.pages...)
	report.Errors = append(report.Errors, cr.errors...)
	cr.mu.Unlock()

	cr.mon.Stop(reason.String())
	report.Metrics = cr.mon.Snapshot()
	report.StopReason = reason
	report.FinishedAt = time.Now()
}
