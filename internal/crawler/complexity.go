package crawler

import (
	"context"

	"github.com/nao1215/docscrawl/internal/browser"
)

const (
	complexityJS   = "js"
	complexityHTML = "html"
)

// collapsedSelectors match controls hiding content behind a click.
var collapsedSelectors = []string{
	`[aria-expanded="false"]`,
	"details:not([open]) > summary",
	".collapsed",
	".accordion-button.collapsed",
	"[data-toggle]",
	"[data-bs-toggle]",
}

const (
	// minCollapsed is the number of collapsed controls that marks a page
	// as needing interaction.
	minCollapsed = 3

	// sparseLinks and sparseText describe a page that has not rendered its
	// content into static markup.
	sparseLinks = 5
	sparseText  = 200
)

// classify decides whether tab needs expansion. Pages that cannot be
// measured are treated as script-rendered.
func (cr *crawl) classify(ctx context.Context, tab browser.Page) string {
	collapsed := 0
	for _, sel := range collapsedSelectors {
		n, err := tab.Count(ctx, sel)
		if err != nil {
			return complexityJS
		}
		collapsed += n
	}
	if collapsed >= minCollapsed {
		return complexityJS
	}

	snap, err := tab.Snapshot(ctx)
	if err != nil {
		return complexityJS
	}
	if snap.LinkCount < sparseLinks && snap.TextLength < sparseText {
		return complexityJS
	}
	return complexityHTML
}
