package scope

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strings"
)

// fileExtensions mark a root URL that names a document rather than a
// directory. The scope of such a root is its parent directory.
var fileExtensions = []string{
	".html", ".htm", ".php", ".asp", ".aspx", ".jsp", ".shtml",
	".xhtml", ".cfm", ".cgi", ".pl", ".py", ".rb",
}

// Filter decides whether a URL belongs to the crawl.
// A URL is in scope when its canonical form is on the root host, inside the
// scope path subtree, and matches no deny pattern.
type Filter struct {
	root        CanonicalURL
	scopePath   string
	deny        []*regexp.Regexp
	stripAll    bool
	stripKeys   map[string]struct{}
	crossScheme bool
	logger      *slog.Logger

	denyPatterns []string
}

// Option configures a Filter.
type Option func(*Filter)

// WithDenyPatterns adds regular expressions that exclude matching URLs.
// Patterns are matched case-insensitively anywhere in the canonical URL.
// Invalid patterns are logged and skipped.
func WithDenyPatterns(patterns ...string) Option {
	return func(f *Filter) {
		f.denyPatterns = append(f.denyPatterns, patterns...)
	}
}

// WithStripAllQueries drops the query string of every URL.
func WithStripAllQueries(strip bool) Option {
	return func(f *Filter) {
		f.stripAll = strip
	}
}

// WithStripQueryKeys drops only the named query parameters.
func WithStripQueryKeys(keys ...string) Option {
	return func(f *Filter) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				f.stripKeys[k] = struct{}{}
			}
		}
	}
}

// WithCrossScheme controls whether http and https URLs of the root host are
// treated as the same site. It is enabled by default.
func WithCrossScheme(allow bool) Option {
	return func(f *Filter) {
		f.crossScheme = allow
	}
}

// WithLogger sets the logger used for scope changes and invalid patterns.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Filter rooted at root.
func New(root string, opts ...Option) (*Filter, error) {
	f := &Filter{
		stripKeys:   make(map[string]struct{}),
		crossScheme: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	c, err := Canonicalize(root, true)
	if err != nil {
		return nil, fmt.Errorf("scope root: %w", err)
	}
	f.root = c
	f.scopePath = scopePathFromRoot(c.Path)

	for _, p := range f.denyPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			f.logger.Warn("ignoring invalid deny pattern", "pattern", p, "error", err)
			continue
		}
		f.deny = append(f.deny, re)
	}
	return f, nil
}

// Root returns the canonical root URL without its query.
func (f *Filter) Root() CanonicalURL {
	return f.root
}

// Host returns the root host.
func (f *Filter) Host() string {
	return f.root.Host
}

// ScopePath returns the current subtree path. "/" means the whole host.
func (f *Filter) ScopePath() string {
	return f.scopePath
}

// Clean canonicalizes candidate with the filter's query policy applied.
func (f *Filter) Clean(candidate string) (CanonicalURL, error) {
	c, err := Canonicalize(candidate, f.stripAll)
	if err != nil {
		return CanonicalURL{}, err
	}
	if len(f.stripKeys) > 0 && c.Query != "" {
		c.Query = f.stripQueryKeys(c.Query)
	}
	return c, nil
}

// stripQueryKeys removes the configured keys from rawQuery. The query is
// rewritten only when a key was actually removed, so the result is stable.
func (f *Filter) stripQueryKeys(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	removed := false
	for k := range values {
		if _, ok := f.stripKeys[k]; ok {
			values.Del(k)
			removed = true
		}
	}
	if !removed {
		return rawQuery
	}
	return values.Encode()
}

// Accept reports whether candidate is in scope.
func (f *Filter) Accept(candidate string) bool {
	c, err := f.Clean(candidate)
	if err != nil {
		return false
	}
	return f.AcceptCanonical(c)
}

// AcceptCanonical reports whether an already cleaned URL is in scope.
func (f *Filter) AcceptCanonical(c CanonicalURL) bool {
	if c.IsZero() || c.Host != f.root.Host {
		return false
	}
	if !f.crossScheme && c.Scheme != f.root.Scheme {
		return false
	}
	if !inSubtree(c.Path, f.scopePath) {
		return false
	}
	return !f.Denied(c)
}

// Denied reports whether c matches a deny pattern.
func (f *Filter) Denied(c CanonicalURL) bool {
	s := c.String()
	for _, re := range f.deny {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// WidenToDomain widens the scope to the whole root host.
// It reports false when the scope already covers the host.
func (f *Filter) WidenToDomain() bool {
	if f.scopePath == "/" {
		return false
	}
	old := f.scopePath
	f.scopePath = "/"
	f.logger.Info("scope widened to entire domain", "host", f.root.Host, "previous_scope", old)
	return true
}

// WidenScope adapts the scope to the URL a navigation actually landed on.
// A landing URL on another host rebases the filter onto that host. On the
// same host the scope becomes the nearest common ancestor of the current
// scope and the landing scope, so the scope never shrinks.
// It reports whether the scope changed.
func (f *Filter) WidenScope(landing string) bool {
	c, err := Canonicalize(landing, true)
	if err != nil {
		return false
	}
	landingScope := scopePathFromRoot(c.Path)

	if c.Host != f.root.Host {
		oldHost, oldScope := f.root.Host, f.scopePath
		f.root = c
		f.scopePath = landingScope
		f.logger.Info("scope rebased after redirect",
			"previous_host", oldHost,
			"previous_scope", oldScope,
			"host", c.Host,
			"scope", landingScope,
		)
		return true
	}

	widened := commonAncestor(f.scopePath, landingScope)
	if widened == f.scopePath {
		return false
	}
	old := f.scopePath
	f.scopePath = widened
	f.logger.Info("scope widened after redirect", "host", f.root.Host, "previous_scope", old, "scope", widened)
	return true
}

// Score returns a priority in [0, 1] for candidate. Pages close to the scope
// root score higher so that overview pages are crawled before deep leaves.
// Out of scope URLs score 0.
func (f *Filter) Score(candidate string) float64 {
	c, err := f.Clean(candidate)
	if err != nil || !f.AcceptCanonical(c) {
		return 0
	}

	if f.scopePath == "/" {
		segments := len(splitSegments(c.Path))
		return math.Max(0.1, 1.0/float64(1+segments))
	}

	extra := len(splitSegments(c.Path)) - len(splitSegments(f.scopePath))
	switch {
	case extra <= 0:
		return 1.0
	case extra == 1:
		return 0.9
	case extra == 2:
		return 0.7
	default:
		return math.Max(0.3, 0.7-0.1*float64(extra))
	}
}

// Description returns a human-readable description of the scope.
func (f *Filter) Description() string {
	if f.scopePath == "/" {
		return "Entire domain: " + f.root.Host
	}
	return "Subtree: " + f.root.Host + f.scopePath + "/**"
}

// LogScope logs the current scope at info level.
func (f *Filter) LogScope() {
	f.logger.Info("crawl scope",
		"root", f.root.String(),
		"scope", f.Description(),
		"deny_patterns", len(f.deny),
		"cross_scheme", f.crossScheme,
	)
}

// scopePathFromRoot derives the subtree path from a canonical root path.
// A root naming a document (index.html, page.aspx, ...) is scoped to its
// parent directory.
func scopePathFromRoot(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	last := strings.ToLower(p[i+1:])
	for _, ext := range fileExtensions {
		if strings.HasSuffix(last, ext) {
			if i <= 0 {
				return "/"
			}
			return p[:i]
		}
	}
	return p
}

// inSubtree reports whether p equals scopePath or lies below it.
// The "/" boundary keeps /docs from matching /docs-archive.
func inSubtree(p, scopePath string) bool {
	if scopePath == "/" {
		return true
	}
	return p == scopePath || strings.HasPrefix(p, scopePath+"/")
}

// commonAncestor returns the deepest path containing both a and b.
func commonAncestor(a, b string) string {
	as, bs := splitSegments(a), splitSegments(b)
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	if n == 0 {
		return "/"
	}
	return "/" + strings.Join(as[:n], "/")
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
