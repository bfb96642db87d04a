package scrape

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// consentSelectors are tried in priority order before falling back to a
// text-match scan.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"button[data-testid='uc-accept-all-button']",
	"button[id*='accept-all']",
	"button[id*='accept']",
	"button[class*='consent'] ",
	".cc-allow",
	".cookie-accept",
}

// consentTextScript clicks the first visible button whose label looks like a
// consent acceptance. Returns true when something was clicked.
const consentTextScript = `() => {
	const words = ['accept', 'agree', 'ok', 'alle akzeptieren', 'akzeptieren', 'zustimmen'];
	const buttons = document.querySelectorAll('button, [role="button"], input[type="submit"]');
	for (const b of buttons) {
		const label = (b.innerText || b.value || '').trim().toLowerCase();
		if (!label || label.length > 40) continue;
		if (words.some(w => label === w || label.startsWith(w + ' ') || label.includes(w))) {
			b.click();
			return true;
		}
	}
	return false;
}`

// dismissConsent removes cookie/consent overlays so they do not cover price
// content. Best effort: a failure never aborts the strategy.
func dismissConsent(page *rod.Page) {
	for _, sel := range consentSelectors {
		el, err := page.Timeout(500 * time.Millisecond).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			time.Sleep(300 * time.Millisecond)
			return
		}
	}

	if res, err := page.Eval(consentTextScript); err == nil && res.Value.Bool() {
		time.Sleep(300 * time.Millisecond)
		return
	}

	// Last resort: many overlays close on Escape
	_ = page.Keyboard.Press(input.Escape)
}
