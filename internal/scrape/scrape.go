package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"camperwatch/internal/models"
	"camperwatch/internal/stealth"
)

// Classification describes what a strategy attempt produced.
type Classification string

const (
	ClassOK                 Classification = "ok"
	ClassBlockedByChallenge Classification = "blocked_by_challenge"
	ClassNavigationError    Classification = "navigation_error"
	ClassEmpty              Classification = "empty"
)

// Request is one scrape target: a competitor, a search location and a date
// window.
type Request struct {
	Competitor models.Competitor
	Location   string
	CheckIn    time.Time
	CheckOut   time.Time
}

// Outcome is the raw material a strategy hands to the price extractor.
type Outcome struct {
	HTML           string
	JSONPayloads   [][]byte
	ScreenshotPath string
	FinalURL       string
	Classification Classification
}

// Strategy is one concrete way to obtain a competitor's pricing page.
// Execute returns an error only for transport-level failures; anti-bot blocks
// and empty pages are reported through Outcome.Classification.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, req Request) (*Outcome, error)
}

// Deps carries the shared collaborators strategies are built from.
type Deps struct {
	Client           *http.Client
	Delay            *stealth.HumanDelay
	ChallengeTimeout time.Duration
	ScreenshotDir    string
	BrowserBin       string
}

// Factory builds a strategy from shared dependencies.
type Factory func(Deps) Strategy

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register makes a strategy factory available under the given roster name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// New builds the named strategy.
func New(name string, deps Deps) (Strategy, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered", name)
	}
	return f(deps), nil
}

// List returns the names of all registered strategies.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// SearchURL renders the request's target URL. Competitors without a
// search_url template are scraped from their base URL.
func (r Request) SearchURL() string {
	u := r.Competitor.SearchURL
	if u == "" {
		return r.Competitor.BaseURL
	}
	repl := strings.NewReplacer(
		"{location}", r.Location,
		"{checkin}", r.CheckIn.Format("2006-01-02"),
		"{checkout}", r.CheckOut.Format("2006-01-02"),
	)
	return repl.Replace(u)
}
