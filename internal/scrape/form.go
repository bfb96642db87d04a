package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"camperwatch/internal/models"
	"camperwatch/internal/stealth"
)

func init() {
	Register("interactive_form", func(deps Deps) Strategy {
		return &InteractiveForm{
			delay:            deps.Delay,
			challengeTimeout: deps.ChallengeTimeout,
			screenshotDir:    deps.ScreenshotDir,
			browserBin:       deps.BrowserBin,
		}
	})
}

// InteractiveForm drives an on-page booking form: select location, pick
// dates, submit. Used when prices only appear after a search submission.
// The interactions come from the competitor's declarative form_steps; a step
// failure aborts the whole strategy without partial commit.
type InteractiveForm struct {
	delay            *stealth.HumanDelay
	challengeTimeout time.Duration
	screenshotDir    string
	browserBin       string
}

func (f *InteractiveForm) Name() string { return "interactive_form" }

func (f *InteractiveForm) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Competitor.FormSteps) == 0 {
		return nil, fmt.Errorf("interactive_form: %s has no form_steps configured", req.Competitor.Name)
	}

	s, err := openSession(ctx, req.SearchURL(), true, f.browserBin)
	if err != nil {
		return nil, fmt.Errorf("interactive_form: %w", err)
	}
	defer s.close()

	s.waitStable()
	dismissConsent(s.page)

	if html, err := s.page.HTML(); err == nil && isChallenge(html) {
		if _, ok := s.awaitClearance(ctx, f.challengeTimeout); !ok {
			shot := s.screenshot(f.screenshotDir, req.Competitor.Name+"-challenge")
			return &Outcome{ScreenshotPath: shot, FinalURL: s.finalURL(), Classification: ClassBlockedByChallenge}, nil
		}
	}

	for i, step := range req.Competitor.FormSteps {
		if err := f.runStep(ctx, s.page, step, req); err != nil {
			ReportProgress(ctx, fmt.Sprintf("%s: form step %d (%s %s) failed", req.Competitor.Name, i+1, step.Action, step.Locate))
			return &Outcome{FinalURL: s.finalURL(), Classification: ClassNavigationError}, nil
		}
	}

	s.waitStable()

	html, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("interactive_form: get HTML: %w", err)
	}

	shot := s.screenshot(f.screenshotDir, req.Competitor.Name)
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

func (f *InteractiveForm) runStep(ctx context.Context, page *rod.Page, step models.FormStep, req Request) error {
	el, err := page.Timeout(5 * time.Second).Element(step.Locate)
	if err != nil {
		return fmt.Errorf("locate %q: %w", step.Locate, err)
	}

	value := renderStepValue(step.Value, req)

	switch step.Action {
	case "click", "submit":
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click %q: %w", step.Locate, err)
		}
	case "type":
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("focus %q: %w", step.Locate, err)
		}
		if err := el.Input(value); err != nil {
			return fmt.Errorf("type into %q: %w", step.Locate, err)
		}
	case "select":
		if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
			return fmt.Errorf("select %q in %q: %w", value, step.Locate, err)
		}
	default:
		return fmt.Errorf("unknown form action %q", step.Action)
	}

	wait := time.Duration(step.WaitMs) * time.Millisecond
	if wait == 0 {
		wait = f.delay.RequestDelay()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func renderStepValue(v string, req Request) string {
	repl := strings.NewReplacer(
		"{location}", req.Location,
		"{checkin}", req.CheckIn.Format("2006-01-02"),
		"{checkout}", req.CheckOut.Format("2006-01-02"),
	)
	return repl.Replace(v)
}
