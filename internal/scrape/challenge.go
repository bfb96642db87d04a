package scrape

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// challengeMarkers identify anti-bot interstitials in page content.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cf-challenge",
	"__cf_chl",
	"turnstile",
	"captcha",
	"verify you are human",
	"ddos protection",
	"access denied",
	"pardon our interruption",
}

// isChallenge reports whether the HTML looks like an anti-bot interstitial
// rather than real content.
func isChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// awaitClearance polls the page while an interstitial is showing, performing
// small humanizing interactions, until the challenge clears or the timeout
// expires. Returns the final HTML and whether the page cleared.
func (s *session) awaitClearance(ctx context.Context, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		html, err := s.page.HTML()
		if err == nil && !isChallenge(html) {
			return html, true
		}
		if time.Now().After(deadline) {
			if err != nil {
				return "", false
			}
			return html, false
		}

		// Challenge pages score pointer activity; wiggle a little.
		_ = s.page.Mouse.MoveTo(proto.Point{
			X: 200 + rand.Float64()*800,
			Y: 150 + rand.Float64()*500,
		})

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(2 * time.Second):
		}
	}
}
