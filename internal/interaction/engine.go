package interaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
)

// Limit names the budget that ended an expansion.
type Limit string

// Limits.
const (
	LimitNone      Limit = "none"
	LimitClicks    Limit = "clicks"
	LimitTime      Limit = "time"
	LimitWasted    Limit = "wasted"
	LimitCancelled Limit = "cancelled"
)

// Default engine settings.
const (
	DefaultMaxClicks         = 50
	DefaultMaxDuration       = 30 * time.Second
	DefaultConsecutiveWasted = 15
	DefaultMaxPasses         = 6
	DefaultClickTimeout      = 1500 * time.Millisecond
	DefaultDelayAfterClick   = 300 * time.Millisecond
	DefaultMinTextDelta      = 80
	DefaultMinLinkDelta      = 1
	DefaultBulkClickSettle   = 500 * time.Millisecond
	DefaultBulkSettle        = 3 * time.Second
	DefaultScanLimit         = 200
)

// Budget bounds the work done on one page.
type Budget struct {
	// MaxClicks is the number of clicks attempted across all phases.
	MaxClicks int

	// MaxDuration is the wall-clock time spent expanding.
	MaxDuration time.Duration

	// ConsecutiveWasted stops expansion after that many wasted clicks in a row.
	ConsecutiveWasted int

	// MaxPasses is the number of catalogue passes.
	MaxPasses int
}

// DefaultBudget returns the default budget.
func DefaultBudget() Budget {
	return Budget{
		MaxClicks:         DefaultMaxClicks,
		MaxDuration:       DefaultMaxDuration,
		ConsecutiveWasted: DefaultConsecutiveWasted,
		MaxPasses:         DefaultMaxPasses,
	}
}

// Result summarizes an expansion.
type Result struct {
	MeaningfulClicks int
	TotalAttempted   int
	WastedClicks     int

	// HitBudget is true when a click, time or wasted-click budget ran out.
	HitBudget bool

	// Limit is the budget that ended the expansion, LimitNone when the
	// phases ran to completion.
	Limit Limit

	// BulkExpanded is true when an "expand all" control did the job.
	BulkExpanded bool

	Duration time.Duration
}

// Engine expands pages. An Engine holds no per-page state and is safe for
// concurrent use.
type Engine struct {
	budget          Budget
	selectors       []string
	bulkSelectors   []string
	clickTimeout    time.Duration
	delayAfterClick time.Duration
	bulkClickSettle time.Duration
	bulkSettle      time.Duration
	minTextDelta    int
	minLinkDelta    int
	scanLimit       int
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget sets the budget. Non-positive fields keep their defaults.
func WithBudget(b Budget) Option {
	return func(e *Engine) {
		if b.MaxClicks > 0 {
			e.budget.MaxClicks = b.MaxClicks
		}
		if b.MaxDuration > 0 {
			e.budget.MaxDuration = b.MaxDuration
		}
		if b.ConsecutiveWasted > 0 {
			e.budget.ConsecutiveWasted = b.ConsecutiveWasted
		}
		if b.MaxPasses > 0 {
			e.budget.MaxPasses = b.MaxPasses
		}
	}
}

// WithSelectors replaces the catalogue.
func WithSelectors(selectors []string) Option {
	return func(e *Engine) {
		e.selectors = selectors
	}
}

// WithBulkSelectors replaces the bulk catalogue.
func WithBulkSelectors(selectors []string) Option {
	return func(e *Engine) {
		e.bulkSelectors = selectors
	}
}

// WithClickTimeout sets the timeout of a single click.
func WithClickTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.clickTimeout = d
	}
}

// WithDelayAfterClick sets how long the page may react to a click before
// it is measured again. Zero disables the wait.
func WithDelayAfterClick(d time.Duration) Option {
	return func(e *Engine) {
		e.delayAfterClick = d
	}
}

// WithBulkSettle sets the waits after clicking a bulk control.
func WithBulkSettle(click, extra time.Duration) Option {
	return func(e *Engine) {
		e.bulkClickSettle = click
		e.bulkSettle = extra
	}
}

// WithMinDeltas sets the text and link growth that make a click meaningful.
func WithMinDeltas(text, links int) Option {
	return func(e *Engine) {
		e.minTextDelta = text
		e.minLinkDelta = links
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the time source used for the duration budget.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		budget:          DefaultBudget(),
		selectors:       DefaultSelectors,
		bulkSelectors:   DefaultBulkSelectors,
		clickTimeout:    DefaultClickTimeout,
		delayAfterClick: DefaultDelayAfterClick,
		bulkClickSettle: DefaultBulkClickSettle,
		bulkSettle:      DefaultBulkSettle,
		minTextDelta:    DefaultMinTextDelta,
		minLinkDelta:    DefaultMinLinkDelta,
		scanLimit:       DefaultScanLimit,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Budget returns the engine's budget.
func (e *Engine) Budget() Budget {
	return e.budget
}

// Expand clicks through the page's collapsed content.
// Errors from individual elements are absorbed; Expand always returns a
// Result describing what it managed to do.
func (e *Engine) Expand(ctx context.Context, page browser.Page) Result {
	r := &run{
		engine: e,
		ctx:    ctx,
		page:   page,
		seen:   make(map[string]struct{}),
		start:  e.now(),
		result: Result{Limit: LimitNone},
	}

	if r.bulk() {
		r.result.BulkExpanded = true
	} else {
		r.catalogue()
		r.scan()
	}

	r.result.Duration = e.now().Sub(r.start)
	e.logger.Debug("expansion done",
		"meaningful", r.result.MeaningfulClicks,
		"attempted", r.result.TotalAttempted,
		"wasted", r.result.WastedClicks,
		"limit", string(r.result.Limit),
		"bulk", r.result.BulkExpanded)
	return r.result
}

// run holds the state of one expansion.
type run struct {
	engine            *Engine
	ctx               context.Context
	page              browser.Page
	seen              map[string]struct{}
	start             time.Time
	consecutiveWasted int
	result            Result
}

// exhausted reports whether a budget ran out and records which one.
func (r *run) exhausted() bool {
	if r.result.Limit != LimitNone {
		return true
	}
	b := r.engine.budget
	switch {
	case r.ctx.Err() != nil:
		r.result.Limit = LimitCancelled
		return true
	case r.result.TotalAttempted >= b.MaxClicks:
		r.result.Limit = LimitClicks
	case r.engine.now().Sub(r.start) >= b.MaxDuration:
		r.result.Limit = LimitTime
	case r.consecutiveWasted >= b.ConsecutiveWasted:
		r.result.Limit = LimitWasted
	default:
		return false
	}
	r.result.HitBudget = true
	return true
}

// bulk runs the bulk pass. It reports whether a bulk control expanded the page.
func (r *run) bulk() bool {
	e := r.engine
	for _, selector := range e.bulkSelectors {
		if r.exhausted() {
			return false
		}
		elements, err := r.page.QueryAll(r.ctx, selector, 0)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if r.exhausted() {
				return false
			}
			info, ok := r.candidate(el)
			if !ok || !isBulkControl(info) {
				continue
			}
			fp := fingerprint(info)
			if r.markSeen(fp) {
				continue
			}

			before := r.snapshot()
			if err := el.Click(r.ctx, e.clickTimeout); err != nil {
				continue
			}
			r.result.TotalAttempted++
			r.sleep(e.bulkClickSettle)
			r.sleep(e.bulkSettle)
			after := r.snapshot()

			e.logger.Debug("bulk expand clicked",
				"selector", selector,
				"links_delta", after.LinkCount-before.LinkCount,
				"text_delta", after.TextLength-before.TextLength,
				"expanded_delta", after.ExpandedCount-before.ExpandedCount)

			if bulkMeaningful(before, after) {
				r.result.MeaningfulClicks++
				r.consecutiveWasted = 0
				return true
			}
			r.result.WastedClicks++
			r.consecutiveWasted++
		}
	}
	return false
}

// catalogue runs catalogue passes while they keep producing meaningful clicks.
func (r *run) catalogue() {
	for pass := 0; pass < r.engine.budget.MaxPasses; pass++ {
		before := r.result.MeaningfulClicks
		for _, selector := range r.engine.selectors {
			if r.exhausted() {
				return
			}
			elements, err := r.page.QueryAll(r.ctx, selector, 0)
			if err != nil {
				continue
			}
			for _, el := range elements {
				if r.exhausted() {
					return
				}
				r.tryClick(el)
			}
		}
		if r.result.MeaningfulClicks == before {
			return
		}
	}
}

// scan runs the heuristic pass over the first elements of the document.
func (r *run) scan() {
	if r.exhausted() {
		return
	}
	elements, err := r.page.QueryAll(r.ctx, "*", r.engine.scanLimit)
	if err != nil {
		return
	}
	for _, el := range elements {
		if r.exhausted() {
			return
		}
		info, err := el.Describe(r.ctx)
		if err != nil || !scoreCandidate(info) {
			continue
		}
		r.tryClick(el)
	}
}

// candidate describes el when it is visible and safe to click.
func (r *run) candidate(el browser.Element) (browser.ElementInfo, bool) {
	visible, err := el.Visible(r.ctx)
	if err != nil || !visible {
		return browser.ElementInfo{}, false
	}
	info, err := el.Describe(r.ctx)
	if err != nil {
		return browser.ElementInfo{}, false
	}
	if isNavigationLink(info) || isAlreadyExpanded(info) {
		return browser.ElementInfo{}, false
	}
	return info, true
}

// markSeen records fp and reports whether it had been seen before.
func (r *run) markSeen(fp string) bool {
	if _, ok := r.seen[fp]; ok {
		return true
	}
	r.seen[fp] = struct{}{}
	return false
}

func (r *run) tryClick(el browser.Element) {
	e := r.engine
	info, ok := r.candidate(el)
	if !ok {
		return
	}
	if r.markSeen(fingerprint(info)) {
		return
	}

	before := r.snapshot()
	if err := el.Click(r.ctx, e.clickTimeout); err != nil {
		return
	}
	r.result.TotalAttempted++
	r.sleep(e.delayAfterClick)
	after := r.snapshot()

	if meaningful(before, after, e.minTextDelta, e.minLinkDelta) {
		r.result.MeaningfulClicks++
		r.consecutiveWasted = 0
		return
	}
	r.result.WastedClicks++
	r.consecutiveWasted++
}

// snapshot measures the page. A failed measurement counts as an empty page.
func (r *run) snapshot() browser.Snapshot {
	s, err := r.page.Snapshot(r.ctx)
	if err != nil {
		return browser.Snapshot{}
	}
	return s
}

func (r *run) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.ctx.Done():
	case <-timer.C:
	}
}
