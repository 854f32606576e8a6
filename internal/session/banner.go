package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/internal/browser"
)

// BannerOutcome reports how the dismissal pass ended.
type BannerOutcome string

const (
	BannerClicked  BannerOutcome = "clicked"
	BannerHidden   BannerOutcome = "hidden"
	BannerNotFound BannerOutcome = "not_found"
)

const bannerClickTimeout = 2 * time.Second

// bannerSelectors is the ordered heuristic list tried first. First match wins.
var bannerSelectors = []string{
	`button:has-text("Accept All")`,
	`button:has-text("Accept all")`,
	`button:has-text("Alle akzeptieren")`,
	`button:has-text("Accept")`,
	`button:has-text("Agree")`,
	`button:has-text("I agree")`,
	`button:has-text("OK")`,
	`[aria-label*="accept" i]`,
	`[aria-label*="consent" i]`,
	`#onetrust-accept-btn-handler`,
	`#accept-cookies`,
	`.cookie-accept`,
	`.cc-allow`,
	`.cc-dismiss`,
	`[id*="cookie" i] button`,
	`[class*="consent" i] button`,
}

// bannerKeywordScan is injected when no selector matched. It walks clickable
// elements and clicks the first whose text matches the keyword set.
const bannerKeywordScan = `(() => {
	const keywords = ["accept all", "accept", "agree", "allow all", "got it", "verstanden", "akzeptieren", "zustimmen"];
	const clickables = document.querySelectorAll('button, a, [role="button"], input[type="button"], input[type="submit"]');
	for (const el of clickables) {
		const text = (el.innerText || el.value || "").trim().toLowerCase();
		if (!text || text.length > 40) continue;
		if (keywords.some(k => text.includes(k))) {
			el.click();
			return true;
		}
	}
	return false;
})()`

// bannerHideCSS is the last resort: hide, not click, anything that looks like
// a cookie or consent overlay.
const bannerHideCSS = `
[id*="cookie" i], [class*="cookie" i],
[id*="consent" i], [class*="consent" i],
[id*="gdpr" i], [class*="gdpr" i],
[aria-label*="cookie" i] {
	display: none !important;
}`

// bannerStrategy attempts one dismissal approach and reports whether it took
// effect. Strategies must not raise past this boundary; errors mean "did not
// apply" and the chain moves on.
type bannerStrategy func(page browser.Page) (BannerOutcome, bool)

// DismissCookieBanners runs the prioritized strategy chain: the fixed selector
// list, then the script-injected keyword scan, then CSS hiding. Each stage is
// best-effort and the total absence of a banner is not an error.
func DismissCookieBanners(page browser.Page, logger *zap.Logger) BannerOutcome {
	log := logger.Named("banner")

	strategies := []bannerStrategy{
		clickKnownSelectors,
		clickByKeywordScan,
		hideByCSS,
	}
	for _, strategy := range strategies {
		if outcome, ok := strategy(page); ok {
			log.Debug("Cookie banner handled.", zap.String("outcome", string(outcome)))
			return outcome
		}
	}
	log.Debug("No cookie banner found.")
	return BannerNotFound
}

func clickKnownSelectors(page browser.Page) (BannerOutcome, bool) {
	for _, selector := range bannerSelectors {
		clicked, err := page.ClickFirstVisible(selector, bannerClickTimeout)
		if err != nil {
			continue
		}
		if clicked {
			return BannerClicked, true
		}
	}
	return "", false
}

func clickByKeywordScan(page browser.Page) (BannerOutcome, bool) {
	result, err := page.Evaluate(bannerKeywordScan)
	if err != nil {
		return "", false
	}
	if clicked, ok := result.(bool); ok && clicked {
		return BannerClicked, true
	}
	return "", false
}

// bannerPresenceProbe checks whether anything cookie/consent-looking exists at
// all, so the CSS fallback does not report a hide on a banner-free page.
const bannerPresenceProbe = `document.querySelectorAll('[id*="cookie" i], [class*="cookie" i], [id*="consent" i], [class*="consent" i], [id*="gdpr" i], [class*="gdpr" i]').length > 0`

func hideByCSS(page browser.Page) (BannerOutcome, bool) {
	result, err := page.Evaluate(bannerPresenceProbe)
	if err != nil {
		return "", false
	}
	if present, ok := result.(bool); !ok || !present {
		return "", false
	}
	if err := page.AddStyle(bannerHideCSS); err != nil {
		return "", false
	}
	return BannerHidden, true
}
