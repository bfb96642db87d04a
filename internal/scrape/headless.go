package scrape

import (
	"context"
	"fmt"
	"time"

	"camperwatch/internal/stealth"
)

func init() {
	Register("stealth_headless", func(deps Deps) Strategy {
		return &StealthHeadless{
			delay:            deps.Delay,
			challengeTimeout: deps.ChallengeTimeout,
			screenshotDir:    deps.ScreenshotDir,
			browserBin:       deps.BrowserBin,
		}
	})
}

// StealthHeadless renders the page in a headless browser with anti-detection
// scripts installed. Used for dynamic content behind light bot defenses.
type StealthHeadless struct {
	delay            *stealth.HumanDelay
	challengeTimeout time.Duration
	screenshotDir    string
	browserBin       string
}

func (h *StealthHeadless) Name() string { return "stealth_headless" }

func (h *StealthHeadless) Execute(ctx context.Context, req Request) (*Outcome, error) {
	s, err := openSession(ctx, req.SearchURL(), true, h.browserBin)
	if err != nil {
		return nil, fmt.Errorf("stealth_headless: %w", err)
	}
	defer s.close()

	s.waitStable()
	dismissConsent(s.page)
	s.waitStable()

	html, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("stealth_headless: get HTML: %w", err)
	}

	if isChallenge(html) {
		ReportProgress(ctx, fmt.Sprintf("%s: challenge page, waiting for clearance", req.Competitor.Name))
		cleared, ok := s.awaitClearance(ctx, h.challengeTimeout)
		if !ok {
			shot := s.screenshot(h.screenshotDir, req.Competitor.Name+"-challenge")
			return &Outcome{HTML: cleared, ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassBlockedByChallenge}, nil
		}
		html = cleared
	}

	shot := s.screenshot(h.screenshotDir, req.Competitor.Name)
	if len(html) == 0 {
		return &Outcome{ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassEmpty}, nil
	}

	return &Outcome{
		HTML:           html,
		ScreenshotPath: shot,
		FinalURL:       s.finalURL(),
		Classification: ClassOK,
	}, nil
}
