package scrape

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"camperwatch/internal/stealth"
)

func init() {
	Register("api_interception", func(deps Deps) Strategy {
		return &APIInterception{
			delay:            deps.Delay,
			challengeTimeout: deps.ChallengeTimeout,
			screenshotDir:    deps.ScreenshotDir,
			browserBin:       deps.BrowserBin,
		}
	})
}

// defaultAPIPatterns match pricing/availability XHR traffic when the roster
// does not configure competitor-specific patterns.
var defaultAPIPatterns = []string{"/api/", "price", "availability", "quote", "rates"}

// APIInterception renders the page headless while recording JSON responses
// whose URL matches the configured patterns. Structured network payloads
// beat DOM scraping whenever the site hydrates prices via XHR.
type APIInterception struct {
	delay            *stealth.HumanDelay
	challengeTimeout time.Duration
	screenshotDir    string
	browserBin       string
}

func (a *APIInterception) Name() string { return "api_interception" }

func (a *APIInterception) Execute(ctx context.Context, req Request) (*Outcome, error) {
	patterns := req.Competitor.APIPatterns
	if len(patterns) == 0 {
		patterns = defaultAPIPatterns
	}

	s, err := openSession(ctx, req.SearchURL(), true, a.browserBin)
	if err != nil {
		return nil, fmt.Errorf("api_interception: %w", err)
	}
	defer s.close()

	if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
		return nil, fmt.Errorf("api_interception: enable network events: %w", err)
	}

	var (
		mu       sync.Mutex
		payloads [][]byte
	)
	go s.page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if !matchesAny(e.Response.URL, patterns) {
			return
		}
		if !strings.Contains(e.Response.MIMEType, "json") {
			return
		}
		body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(s.page)
		if err != nil || body.Body == "" {
			return
		}
		mu.Lock()
		payloads = append(payloads, []byte(body.Body))
		mu.Unlock()
	})()

	s.waitStable()
	dismissConsent(s.page)

	html, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("api_interception: get HTML: %w", err)
	}

	if isChallenge(html) {
		cleared, ok := s.awaitClearance(ctx, a.challengeTimeout)
		if !ok {
			shot := s.screenshot(a.screenshotDir, req.Competitor.Name+"-challenge")
			return &Outcome{HTML: cleared, ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassBlockedByChallenge}, nil
		}
		html = cleared
	}

	// Give late XHRs a chance to land before we stop listening
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(a.delay.DwellDelay()):
	}
	if h, err := s.page.HTML(); err == nil && len(h) > len(html) {
		html = h
	}

	mu.Lock()
	captured := make([][]byte, len(payloads))
	copy(captured, payloads)
	mu.Unlock()

	shot := s.screenshot(a.screenshotDir, req.Competitor.Name)
	if len(captured) == 0 && len(html) == 0 {
		return &Outcome{ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassEmpty}, nil
	}

	return &Outcome{
		HTML:           html,
		JSONPayloads:   captured,
		ScreenshotPath: shot,
		FinalURL:       s.finalURL(),
		Classification: ClassOK,
	}, nil
}

func matchesAny(url string, patterns []string) bool {
	lower := strings.ToLower(url)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
