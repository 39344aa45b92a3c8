package crawler

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
)

// consentSelectors match the accept buttons of common consent managers:
// OneTrust, TrustArc, Cookiebot and generic ids and classes.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#truste-consent-button",
	".trustarc-agree-btn",
	"#consent_agree_button",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"#CybotCookiebotDialogBodyButtonAccept",
	".cookie-accept",
	".cc-accept",
	`[data-testid="cookie-accept"]`,
	".consent-accept",
	"#cookie-accept",
	"#accept-cookies",
	".js-accept-cookies",
}

// consentTexts are button labels that accept a consent banner.
var consentTexts = []string{
	"accept",
	"accept all",
	"accept all cookies",
	"accept and proceed",
	"accept cookies",
	"agree",
	"agree and proceed",
	"allow all",
	"got it",
	"i accept",
	"i understand",
}

const (
	consentClickTimeout = 2 * time.Second
	consentSettle       = 300 * time.Millisecond
	consentButtonScan   = 50
)

// dismissConsent clicks the first visible consent button it finds.
func (cr *crawl) dismissConsent(ctx context.Context, tab browser.Page) {
	for _, sel := range consentSelectors {
		els, err := tab.QueryAll(ctx, sel, 1)
		if err != nil || len(els) == 0 {
			continue
		}
		if cr.clickConsent(ctx, els[0], sel) {
			return
		}
	}

	buttons, err := tab.QueryAll(ctx, "button", consentButtonScan)
	if err != nil {
		return
	}
	for _, el := range buttons {
		info, err := el.Describe(ctx)
		if err != nil || !isConsentText(info.Text) {
			continue
		}
		if cr.clickConsent(ctx, el, "button:"+info.Text) {
			return
		}
	}
}

func (cr *crawl) clickConsent(ctx context.Context, el browser.Element, via string) bool {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false
	}
	if err := el.Click(ctx, consentClickTimeout); err != nil {
		return false
	}
	cr.logger.Debug("dismissed consent banner", "via", via)
	time.Sleep(consentSettle)
	return true
}

func isConsentText(text string) bool {
	return slices.Contains(consentTexts, strings.ToLower(strings.Join(strings.Fields(text), " ")))
}
