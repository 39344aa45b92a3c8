// Package fakebrowser provides an in-memory browser.Browser for tests.
//
// Pages are declared up front as PageSpecs keyed by URL. Each tab gets its
// own copy of the page state, so clicks on one tab never leak into another.
// Elements match the selectors they list, which lets tests model exactly
// what a selector catalogue would find without a DOM.
package fakebrowser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
)

// PageSpec declares one page.
type PageSpec struct {
	// Status is the HTTP status. Zero means 200.
	Status int

	// ContentType defaults to text/html.
	ContentType string

	// FinalURL is the URL after redirects. Empty means the requested URL.
	FinalURL string

	// HTML is the initial document.
	HTML string

	// Snapshot is the initial measurement of the page.
	Snapshot browser.Snapshot

	// Elements are the page's elements in document order.
	Elements []ElementSpec

	// Counts adds fixed results for Count, on top of matching elements.
	Counts map[string]int

	// Err is returned by Navigate.
	Err error

	// Delay is how long Navigate takes. Navigate times out when Delay
	// reaches the navigation timeout.
	Delay time.Duration

	// Eval answers Page.Evaluate. The result is JSON round-tripped into out.
	Eval func(script string) (any, error)
}

// ElementSpec declares one element.
type ElementSpec struct {
	// Name identifies the element in click counts.
	Name string

	// Selectors are the CSS selectors the element matches. Every element
	// also matches "*".
	Selectors []string

	// Info is returned by Describe.
	Info browser.ElementInfo

	// Hidden makes Visible report false.
	Hidden bool

	// ClickErr is returned by Click.
	ClickErr error

	// OnClick mutates the tab's state when the element is clicked.
	OnClick func(s *State)
}

// State is the mutable state of one tab.
type State struct {
	HTML     string
	Snapshot browser.Snapshot
	Elements []*ElementSpec
}

// Element returns the element with the given name, or nil.
func (s *State) Element(name string) *ElementSpec {
	for _, e := range s.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Browser is an in-memory browser.Browser. It is safe for concurrent use.
type Browser struct {
	mu      sync.Mutex
	pages   map[string]PageSpec
	visits  map[string]int
	clicks  map[string]int
	opened  int
	closedN int
	closed  bool
}

// New returns a Browser serving pages.
func New(pages map[string]PageSpec) *Browser {
	p := make(map[string]PageSpec, len(pages))
	for k, v := range pages {
		p[k] = v
	}
	return &Browser{
		pages:  p,
		visits: make(map[string]int),
		clicks: make(map[string]int),
	}
}

// Set adds or replaces a page.
func (b *Browser) Set(url string, spec PageSpec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = spec
}

// NewPage opens a tab.
func (b *Browser) NewPage(_ context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	b.opened++
	return &Page{browser: b}, nil
}

// Close closes the browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Visits returns how many times url was navigated to.
func (b *Browser) Visits(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visits[url]
}

// TotalVisits returns the number of navigations across all URLs.
func (b *Browser) TotalVisits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.visits {
		n += v
	}
	return n
}

// Clicks returns how many times the named element on url was clicked.
func (b *Browser) Clicks(url, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicks[url+"#"+name]
}

// OpenPages returns the number of tabs opened and not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened - b.closedN
}

func (b *Browser) lookup(url string) (PageSpec, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visits[url]++
	spec, ok := b.pages[url]
	return spec, ok
}

func (b *Browser) recordClick(url, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clicks[url+"#"+name]++
}

func (b *Browser) pageClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closedN++
}

// Page is a fake tab.
type Page struct {
	browser *Browser

	mu     sync.Mutex
	url    string
	spec   PageSpec
	state  *State
	closed bool
}

var _ browser.Page = (*Page)(nil)

// Navigate loads url from the browser's page specs. Unknown URLs answer 404.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) (browser.Response, error) {
	spec, ok := p.browser.lookup(url)
	if !ok {
		spec = PageSpec{Status: 404}
	}

	if spec.Delay > 0 {
		wait := spec.Delay
		if timeout > 0 && timeout < wait {
			wait = timeout
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return browser.Response{}, ctx.Err()
		case <-timer.C:
		}
		if timeout > 0 && spec.Delay >= timeout {
			return browser.Response{}, fmt.Errorf("%w: %s after %s", browser.ErrNavigationTimeout, url, timeout)
		}
	}
	if spec.Err != nil {
		return browser.Response{}, spec.Err
	}

	state := &State{HTML: spec.HTML, Snapshot: spec.Snapshot}
	for i := range spec.Elements {
		e := spec.Elements[i]
		e.Selectors = slices.Clone(e.Selectors)
		state.Elements = append(state.Elements, &e)
	}

	resp := browser.Response{
		Status:      spec.Status,
		ContentType: spec.ContentType,
		URL:         spec.FinalURL,
		Bytes:       int64(len(spec.HTML)),
	}
	if resp.Status == 0 {
		resp.Status = 200
	}
	if resp.ContentType == "" {
		resp.ContentType = "text/html"
	}
	if resp.URL == "" {
		resp.URL = url
	}

	p.mu.Lock()
	p.url = resp.URL
	p.spec = spec
	p.state = state
	p.mu.Unlock()
	return resp, nil
}

// URL returns the current URL.
func (p *Page) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// QueryAll returns the elements listing selector, or every element for "*".
func (p *Page) QueryAll(_ context.Context, selector string, limit int) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return nil, nil
	}
	var out []browser.Element
	for _, e := range p.state.Elements {
		if limit > 0 && len(out) >= limit {
			break
		}
		if selector == "*" || slices.Contains(e.Selectors, selector) {
			out = append(out, &Element{page: p, spec: e})
		}
	}
	return out, nil
}

// Count counts matching elements plus PageSpec.Counts[selector].
func (p *Page) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return 0, nil
	}
	n := p.spec.Counts[selector]
	for _, e := range p.state.Elements {
		if selector == "*" || slices.Contains(e.Selectors, selector) {
			n++
		}
	}
	return n, nil
}

// Snapshot returns the tab's current measurement.
func (p *Page) Snapshot(_ context.Context) (browser.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return browser.Snapshot{}, nil
	}
	return p.state.Snapshot, nil
}

// Evaluate answers through PageSpec.Eval and otherwise does nothing.
func (p *Page) Evaluate(_ context.Context, script string, out any) error {
	p.mu.Lock()
	eval := p.spec.Eval
	p.mu.Unlock()
	if eval == nil {
		return nil
	}
	v, err := eval(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// HTML returns the tab's current document.
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return "", nil
	}
	return p.state.HTML, nil
}

// Screenshot returns a fixed PNG signature.
func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Close closes the tab. Closing twice is a no-op.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.browser.pageClosed()
	return nil
}

// Element is a fake element handle.
type Element struct {
	page *Page
	spec *ElementSpec
}

var _ browser.Element = (*Element)(nil)

// ErrDetached is returned for elements of a closed tab.
var ErrDetached = errors.New("fakebrowser: element detached")

// Visible reports !Hidden.
func (e *Element) Visible(_ context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return !e.spec.Hidden, nil
}

// Describe returns Info.
func (e *Element) Describe(_ context.Context) (browser.ElementInfo, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.spec.Info, nil
}

// Click records the click and runs OnClick.
func (e *Element) Click(_ context.Context, _ time.Duration) error {
	e.page.mu.Lock()
	if e.page.closed {
		e.page.mu.Unlock()
		return ErrDetached
	}
	if e.spec.ClickErr != nil {
		err := e.spec.ClickErr
		e.page.mu.Unlock()
		return err
	}
	if e.spec.OnClick != nil {
		e.spec.OnClick(e.page.state)
	}
	url := e.page.url
	name := e.spec.Name
	e.page.mu.Unlock()

	e.page.browser.recordClick(url, name)
	return nil
}

// Evaluate does nothing.
func (e *Element) Evaluate(_ context.Context, _ string, _ any) error {
	return nil
}
