package scrape

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"camperwatch/internal/stealth"
)

func init() {
	Register("visible_humanized", func(deps Deps) Strategy {
		return &VisibleHumanized{
			delay:            deps.Delay,
			challengeTimeout: deps.ChallengeTimeout,
			screenshotDir:    deps.ScreenshotDir,
			browserBin:       deps.BrowserBin,
		}
	})
}

// VisibleHumanized drives a non-headless browser with simulated mouse
// movement, natural scrolling and randomized dwell. Challenge pages usually
// detect headless mode, so this is the escalation after a
// blocked_by_challenge outcome.
type VisibleHumanized struct {
	delay            *stealth.HumanDelay
	challengeTimeout time.Duration
	screenshotDir    string
	browserBin       string
}

func (v *VisibleHumanized) Name() string { return "visible_humanized" }

func (v *VisibleHumanized) Execute(ctx context.Context, req Request) (*Outcome, error) {
	s, err := openSession(ctx, req.SearchURL(), false, v.browserBin)
	if err != nil {
		return nil, fmt.Errorf("visible_humanized: %w", err)
	}
	defer s.close()

	s.waitStable()
	dismissConsent(s.page)
	v.browseLikeHuman(ctx, s)

	html, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("visible_humanized: get HTML: %w", err)
	}

	if isChallenge(html) {
		cleared, ok := s.awaitClearance(ctx, v.challengeTimeout)
		if !ok {
			shot := s.screenshot(v.screenshotDir, req.Competitor.Name+"-challenge")
			return &Outcome{HTML: cleared, ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassBlockedByChallenge}, nil
		}
		html = cleared
		// The real content often loads lazily after clearance
		v.browseLikeHuman(ctx, s)
		if h, err := s.page.HTML(); err == nil {
			html = h
		}
	}

	shot := s.screenshot(v.screenshotDir, req.Competitor.Name)
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

// browseLikeHuman performs a short randomized browse: mouse arcs, partial
// scrolls and dwell pauses.
func (v *VisibleHumanized) browseLikeHuman(ctx context.Context, s *session) {
	for i := 0; i < 3+rand.IntN(3); i++ {
		if ctx.Err() != nil {
			return
		}
		_ = s.page.Mouse.MoveTo(proto.Point{
			X: 100 + rand.Float64()*1100,
			Y: 100 + rand.Float64()*700,
		})
		_ = s.page.Mouse.Scroll(0, 200+rand.Float64()*400, 4+rand.IntN(6))

		select {
		case <-ctx.Done():
			return
		case <-time.After(v.delay.RequestDelay()):
		}
	}

	// Scroll back up so above-the-fold price blocks re-render
	_ = s.page.Mouse.Scroll(0, -600, 5)
	select {
	case <-ctx.Done():
	case <-time.After(v.delay.DwellDelay()):
	}
}
