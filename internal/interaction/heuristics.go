package interaction

import (
	"fmt"
	"math"
	"strings"

	"github.com/nao1215/docscrawl/internal/browser"
)

// isNavigationLink reports whether the element is a plain link that would
// navigate away from the page.
func isNavigationLink(info browser.ElementInfo) bool {
	if !strings.EqualFold(info.Tag, "a") {
		return false
	}
	href := strings.TrimSpace(info.Href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return false
	}
	return !info.HasDataToggle && !info.HasDataBsToggle && !info.HasAriaExpanded && !info.HasOnclick
}

// isAlreadyExpanded reports whether clicking the element would collapse
// content that is already open.
func isAlreadyExpanded(info browser.ElementInfo) bool {
	return info.AriaExpanded == "true" || info.AncestorExpanded
}

// scoreCandidate decides whether an element found by the heuristic scan
// looks like a toggle worth clicking.
func scoreCandidate(info browser.ElementInfo) bool {
	if info.HasAriaExpanded || info.HasAriaPressed || info.HasDataToggle ||
		info.HasDataBsToggle || info.HasOnclick || info.Role == "button" {
		return true
	}
	switch strings.ToUpper(info.Tag) {
	case "BUTTON", "SUMMARY":
		return true
	}
	if isNavigationLink(info) {
		return false
	}

	text := strings.ToLower(prefix(info.Text, 80))
	for _, w := range expandTextWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	class := strings.ToLower(info.Class)
	for _, w := range interactiveClassWords {
		if strings.Contains(class, w) {
			return true
		}
	}
	return false
}

// isBulkControl reports whether a bulk-catalogue match really is an
// "expand all" control.
func isBulkControl(info browser.ElementInfo) bool {
	title := strings.ToLower(info.Title)
	label := strings.ToLower(info.AriaLabel)
	text := strings.ToLower(strings.TrimSpace(info.Text))
	for _, term := range bulkTerms {
		if strings.Contains(title, term) || strings.Contains(label, term) || text == term {
			return true
		}
	}
	return false
}

// fingerprint identifies an element across queries.
func fingerprint(info browser.ElementInfo) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		info.Tag, info.ID, info.Class,
		strings.TrimSpace(prefix(info.Text, 50)),
		int64(math.Round(info.Top)), int64(math.Round(info.Left)))
}

// meaningful reports whether a click changed the page enough to count.
func meaningful(before, after browser.Snapshot, minText, minLinks int) bool {
	switch {
	case after.TextLength-before.TextLength >= minText:
		return true
	case after.LinkCount-before.LinkCount >= minLinks:
		return true
	case after.HeadingCount > before.HeadingCount:
		return true
	case after.ExpandedCount > before.ExpandedCount:
		return true
	}
	return false
}

// bulkMeaningful is the stricter test applied to bulk controls.
func bulkMeaningful(before, after browser.Snapshot) bool {
	return after.LinkCount > before.LinkCount ||
		after.TextLength-before.TextLength > 200 ||
		after.ExpandedCount-before.ExpandedCount > 5
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
