package extract

import (
	"encoding/json"
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/docscrawl/internal/model"
)

// ErrEmptyDocument is returned when there is no HTML to extract from.
var ErrEmptyDocument = errors.New("empty document")

// Limits applied to one page.
const (
	maxTables       = 20
	maxCodeBlocks   = 20
	minCodeBlockLen = 10
	maxSectionDepth = 20
	maxSectionLabel = 100

	// substantialContent is the text length at which a content selector is
	// taken without looking further; minimalContent is the least a best
	// candidate needs before body is used instead.
	substantialContent = 500
	minimalContent     = 100
)

// DefaultContentSelectors locate the main content area, most specific first.
var DefaultContentSelectors = []string{
	"main", "article", ".content", ".main-content", "#content", "[role=main]",
	".documentation", ".doc-content", ".theme-doc-markdown", ".markdown-section",
	".md-content", ".rst-content", ".document", ".wiki-content", ".article-body",
}

// DefaultExcludeSelectors are removed before text is collected.
var DefaultExcludeSelectors = []string{
	"script", "style", "noscript", "template", "svg",
	"nav", "header", "footer",
	`[role="navigation"]`, `[role="banner"]`, `[role="contentinfo"]`,
	".sidebar", ".toc", ".breadcrumb", ".pagination", ".skip-link",
	"#onetrust-banner-sdk", "#CybotCookiebotDialog", "#consent_blackbar",
	"#trustarc-banner-overlay", "#trustarcNoticeFrame",
}

// DefaultLinkSelectors find navigation links, including sidebars and trees.
var DefaultLinkSelectors = []string{
	"a[href]", ".toc-link[href]", ".nav-link[href]", "[role=treeitem] a",
	".menu__link[href]", ".md-nav__link[href]", "nav a[href]", ".sidebar a[href]",
	"[role=tree] a[href]",
}

var breadcrumbSelectors = []string{
	".breadcrumb a", ".breadcrumb li", `[aria-label="breadcrumb"] a`,
	".ohc-breadcrumb a", `nav[aria-label*="breadcrumb"] a`,
}

var sectionSelectors = []string{
	".toc-item.active", ".nav-item.active", ".tree-item.selected",
	`[aria-current="page"]`, ".ohc-sidebar-item.active", ".is-selected",
}

const treeItemSelector = "li, .toc-item, .tree-item, .nav-item"

// Result is everything extracted from one document.
type Result struct {
	Title       string
	Headings    map[string][]string
	Text        string
	Tables      []model.Table
	CodeBlocks  []string
	Links       []string
	Breadcrumb  []string
	SectionPath []string
}

// Extractor turns rendered HTML into page content.
// An Extractor is immutable and safe for concurrent use.
type Extractor struct {
	contentSelectors []string
	excludeSelectors []string
	linkSelectors    []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithContentSelectors replaces the main content selectors.
func WithContentSelectors(selectors []string) Option {
	return func(e *Extractor) {
		e.contentSelectors = selectors
	}
}

// WithExcludeSelectors replaces the selectors removed before text collection.
func WithExcludeSelectors(selectors []string) Option {
	return func(e *Extractor) {
		e.excludeSelectors = selectors
	}
}

// WithLinkSelectors replaces the link selectors.
func WithLinkSelectors(selectors []string) Option {
	return func(e *Extractor) {
		e.linkSelectors = selectors
	}
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		contentSelectors: DefaultContentSelectors,
		excludeSelectors: DefaultExcludeSelectors,
		linkSelectors:    DefaultLinkSelectors,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses document and extracts its content. Relative links are
// resolved against baseURL.
//
// Links, breadcrumb and section path come from the whole document; title,
// headings, text, tables and code blocks come from the main content area
// after navigation and boilerplate are removed.
func (e *Extractor) Extract(document, baseURL string) (*Result, error) {
	if strings.TrimSpace(document) == "" {
		return nil, ErrEmptyDocument
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	res := &Result{
		Headings: make(map[string][]string),
	}
	res.Links = e.links(doc, base)
	res.Breadcrumb = breadcrumb(doc)
	res.SectionPath = sectionPath(doc)
	res.Title = title(doc)

	for _, sel := range e.excludeSelectors {
		doc.Find(sel).Remove()
	}
	main := e.mainContent(doc)

	for level := 1; level <= 6; level++ {
		tag := "h" + strconv.Itoa(level)
		main.Find(tag).Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); t != "" {
				res.Headings[tag] = append(res.Headings[tag], t)
			}
		})
	}
	res.Tables = tables(main)
	res.CodeBlocks = codeBlocks(main)
	res.Text = Text(main)
	return res, nil
}

// Links parses document and returns only its links.
func (e *Extractor) Links(document, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, err
	}
	return e.links(doc, base), nil
}

func (e *Extractor) links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sel := range e.linkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			resolved := Resolve(base, href)
			if resolved == "" {
				return
			}
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			out = append(out, resolved)
		})
	}
	return out
}

// Resolve resolves href against base. Pseudo-scheme links (javascript:,
// mailto:, tel:, data:) and bare fragments yield "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, p := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// mainContent picks the first content selector with substantial text,
// else the richest candidate with some text, else body.
func (e *Extractor) mainContent(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0
	for _, sel := range e.contentSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		n := len([]rune(Text(s)))
		if n >= substantialContent {
			return s
		}
		if n > bestLen {
			best, bestLen = s, n
		}
	}
	if best != nil && bestLen >= minimalContent {
		return best
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func title(doc *goquery.Document) string {
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return collapse(doc.Find("h1").First().Text())
}

func tables(main *goquery.Selection) []model.Table {
	var out []model.Table
	main.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		var table model.Table
		var header []string
		t.Find("th").Each(func(_ int, c *goquery.Selection) {
			header = append(header, collapse(c.Text()))
		})
		if len(header) > 0 {
			table = append(table, header)
		}
		t.Find("tr").Each(func(_ int, r *goquery.Selection) {
			var row []string
			r.Find("td").Each(func(_ int, c *goquery.Selection) {
				row = append(row, collapse(c.Text()))
			})
			if len(row) > 0 {
				table = append(table, row)
			}
		})
		if len(table) > 0 {
			out = append(out, table)
		}
		return len(out) < maxTables
	})
	return out
}

func codeBlocks(main *goquery.Selection) []string {
	var out []string
	main.Find("pre").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		code := strings.TrimSpace(s.Text())
		if len(code) <= minCodeBlockLen || IsJSONBlob(code) {
			return true
		}
		out = append(out, code)
		return len(out) < maxCodeBlocks
	})
	return out
}

// IsJSONBlob reports whether s is a complete JSON object or array, as
// served by API endpoints that are not documentation.
func IsJSONBlob(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	object := s[0] == '{' && s[len(s)-1] == '}'
	array := s[0] == '[' && s[len(s)-1] == ']'
	return (object || array) && json.Valid([]byte(s))
}

func breadcrumb(doc *goquery.Document) []string {
	for _, sel := range breadcrumbSelectors {
		var trail []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			t := collapse(s.Text())
			if t != "" && !slices.Contains(trail, t) {
				trail = append(trail, t)
			}
		})
		if len(trail) > 0 {
			return trail
		}
	}
	return nil
}

// sectionPath walks from the active navigation item up through its
// enclosing tree items, outermost first.
func sectionPath(doc *goquery.Document) []string {
	for _, sel := range sectionSelectors {
		cur := doc.Find(sel).First()
		var path []string
		for cur.Length() > 0 && len(path) < maxSectionDepth {
			if label := firstLine(Text(cur)); label != "" {
				path = append([]string{label}, path...)
			}
			cur = cur.Closest(treeItemSelector).Parent().Closest(treeItemSelector)
		}
		if len(path) > 0 {
			return path
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxSectionLabel {
		line = string(r[:maxSectionLabel])
	}
	return line
}

// collapse trims s and folds internal whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
