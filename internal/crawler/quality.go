package crawler

import (
	"net/url"
	"strings"

	"github.com/nao1215/docscrawl/internal/extract"
	"github.com/nao1215/docscrawl/internal/model"
)

// placeholderCookieWords is the word count under which a page mentioning
// cookies is taken for a consent wall.
const placeholderCookieWords = 30

// gate applies the content checks that need no crawl state and computes
// the page fingerprint for the duplicate check.
func (cr *crawl) gate(page *model.Page) {
	if page.Skipped {
		return
	}
	if reason := qualityReason(page, cr.c.minWordCount); reason != "" {
		cr.logger.Debug("page skipped", "url", page.URL, "reason", reason)
		page.Skip(reason)
		return
	}
	page.ComputeFingerprint(urlPath(page.URL))
}

// qualityReason returns why page holds no useful content, or "".
func qualityReason(page *model.Page, minWords int) string {
	if extract.IsJSONBlob(page.Text) {
		return "raw JSON response"
	}
	if page.WordCount >= minWords {
		return ""
	}

	lower := strings.ToLower(page.Text)
	switch {
	case page.WordCount == 0:
		return "empty page"
	case strings.Contains(lower, "loading application"):
		return "application still loading"
	case strings.Contains(lower, "cookie") && page.WordCount < placeholderCookieWords:
		return "cookie banner only"
	default:
		return ""
	}
}

// dedupe skips page when another page already has its fingerprint.
// Called with mu held.
func (cr *crawl) dedupe(page *model.Page) {
	if page.Skipped || page.Fingerprint == "" {
		return
	}
	if other, ok := cr.fingerprints[page.Fingerprint]; ok && other != page.URL {
		cr.logger.Debug("duplicate content", "url", page.URL, "duplicate_of", other)
		page.Skip("duplicate of " + other)
		return
	}
	cr.fingerprints[page.Fingerprint] = page.URL
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
