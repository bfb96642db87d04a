package orchestrate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camperwatch/config"
	"camperwatch/internal/alert"
	"camperwatch/internal/analyze"
	"camperwatch/internal/breaker"
	"camperwatch/internal/cache"
	"camperwatch/internal/logutil"
	"camperwatch/internal/models"
	"camperwatch/internal/scrape"
	"camperwatch/internal/store"
	"camperwatch/internal/validate"
)

const priceHTML = `<html><body><p>Campervan from €89.50 per night</p></body></html>`

// fakeStrategy replays scripted outcomes and counts invocations. The last
// scripted step repeats once the script is exhausted.
type fakeStrategy struct {
	name   string
	script []func() (*scrape.Outcome, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Execute(ctx context.Context, req scrape.Request) (*scrape.Outcome, error) {
	f.mu.Lock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	f.mu.Unlock()
	return f.script[i]()
}

func (f *fakeStrategy) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ok() func() (*scrape.Outcome, error) {
	return func() (*scrape.Outcome, error) {
		return &scrape.Outcome{HTML: priceHTML, Classification: scrape.ClassOK}, nil
	}
}

func transportErr() func() (*scrape.Outcome, error) {
	return func() (*scrape.Outcome, error) { return nil, errors.New("connection reset") }
}

func blocked() func() (*scrape.Outcome, error) {
	return func() (*scrape.Outcome, error) {
		return &scrape.Outcome{Classification: scrape.ClassBlockedByChallenge}, nil
	}
}

func emptyPage() func() (*scrape.Outcome, error) {
	return func() (*scrape.Outcome, error) {
		return &scrape.Outcome{Classification: scrape.ClassEmpty}, nil
	}
}

type fixture struct {
	orch    *Orchestrator
	store   *store.Store
	cache   *cache.Cache
	breaker *breaker.Breaker
	cfg     *config.Config
	sleeps  *[]time.Duration
}

func newFixture(t *testing.T, roster []models.Competitor, strategies map[string]scrape.Strategy) fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.RetryDelay = 100 * time.Millisecond
	cfg.RateLimitDelay = 0 // no pacing inside tests
	cfg.ScrapingTimeout = time.Second

	st := store.New(db)
	ca := cache.New(db)
	br := breaker.New(cfg.FailureThreshold, cfg.BreakerCooldown)
	v := validate.New(cfg.Bounds, cfg.MaxDiscount, st)

	o := New(cfg, roster, strategies, st, ca, br, v, logutil.New())
	sleeps := &[]time.Duration{}
	o.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return fixture{orch: o, store: st, cache: ca, breaker: br, cfg: cfg, sleeps: sleeps}
}

func comp(name string, strategies ...string) models.Competitor {
	return models.Competitor{
		Name:       name,
		BaseURL:    "https://" + name + ".example.com",
		Currency:   models.CurrencyEUR,
		Strategies: strategies,
	}
}

func TestScrapeOneHappyPath(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){ok()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, models.SourceLive, res.Source)
	require.Equal(t, "direct", res.Strategy)
	require.Equal(t, 1, fake.callCount())
	require.Len(t, res.Observations, 1)
	require.Equal(t, 89.50, res.Observations[0].BaseNightlyRate)
	require.Equal(t, 1, res.Inserted)
	require.Empty(t, res.Failures)

	// Persisted and cached for future fallbacks
	latest, err := f.store.Latest(context.Background(), "roadsurfer")
	require.NoError(t, err)
	require.NotNil(t, latest)
	cached, err := f.cache.GetIfFresh(context.Background(), "roadsurfer", time.Hour)
	require.NoError(t, err)
	require.Len(t, cached, 1)

	require.Equal(t, breaker.StateClosed, f.breaker.State("roadsurfer").State)
}

func TestTransportFailureRetriesWithBackoff(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){
		transportErr(), transportErr(), ok(),
	}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, models.SourceLive, res.Source)
	require.Equal(t, 3, fake.callCount())
	// Exponential backoff before attempts 2 and 3
	require.Equal(t, []time.Duration{f.cfg.RetryDelay, 2 * f.cfg.RetryDelay}, *f.sleeps)
	// A run that eventually succeeds leaves the circuit clean
	require.Equal(t, 0, f.breaker.State("roadsurfer").Failures)
}

func TestChallengeAbandonsStrategyWithoutRetry(t *testing.T) {
	c := comp("roadsurfer", "direct", "stealth_headless")
	first := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){blocked()}}
	second := &fakeStrategy{name: "stealth_headless", script: []func() (*scrape.Outcome, error){ok()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{
		"direct": first, "stealth_headless": second,
	})

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, 1, first.callCount(), "challenge must not retry within a strategy")
	require.Equal(t, models.SourceLive, res.Source)
	require.Equal(t, "stealth_headless", res.Strategy)
	require.Len(t, res.Failures, 1)
	require.Equal(t, FailChallenge, res.Failures[0].Kind)
	// The blocked strategy counted toward the breaker, the success reset it
	require.Equal(t, 0, f.breaker.State("roadsurfer").Failures)
}

func TestAllStrategiesBlockedFallsBackToEstimate(t *testing.T) {
	c := comp("roadsurfer", "direct", "stealth_headless")
	first := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){blocked()}}
	second := &fakeStrategy{name: "stealth_headless", script: []func() (*scrape.Outcome, error){blocked()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{
		"direct": first, "stealth_headless": second,
	})

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, models.SourceEstimate, res.Source)
	require.Len(t, res.Observations, 1)
	obs := res.Observations[0]
	require.True(t, obs.IsEstimated)
	// Empty store: the estimate is the midpoint of the configured bounds
	b := f.cfg.Bounds[models.CurrencyEUR]
	require.InDelta(t, (b.Min+b.Max)/2, obs.BaseNightlyRate, 0.001)

	// One breaker failure per blocked strategy
	require.Equal(t, 2, f.breaker.State("roadsurfer").Failures)
	require.Len(t, res.Failures, 2)
}

func TestEmptyPageIsExtractionFailureNotBreakerFailure(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){emptyPage()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, 1, fake.callCount())
	require.Len(t, res.Failures, 1)
	require.Equal(t, FailExtraction, res.Failures[0].Kind)
	require.Equal(t, 0, f.breaker.State("roadsurfer").Failures)
}

func TestDuplicateBatchIsValidationFailure(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){ok()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	// Today's identical price is already stored
	now := time.Now()
	_, err := f.store.Insert(context.Background(), models.PriceObservation{
		CompanyName:     "roadsurfer",
		BaseNightlyRate: 89.50,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(now),
		ScrapeTimestamp: now,
		Source:          models.SourceLive,
	})
	require.NoError(t, err)

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Len(t, res.Failures, 1)
	require.Equal(t, FailValidation, res.Failures[0].Kind)
	// Validation failures never count toward the breaker
	require.Equal(t, 0, f.breaker.State("roadsurfer").Failures)
	// The stored row from earlier today backs the fallback
	require.Equal(t, models.SourceStoreFallback, res.Source)
}

func TestOpenBreakerSkipsStrategies(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){ok()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	for i := 0; i < f.cfg.FailureThreshold; i++ {
		f.breaker.RecordFailure("roadsurfer")
	}

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Zero(t, fake.callCount(), "open circuit must not invoke strategies")
	require.Equal(t, models.SourceEstimate, res.Source)
	require.Contains(t, res.Notes, "breaker open")
}

func TestFallbackPrefersFreshCache(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){transportErr()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	now := time.Now()
	require.NoError(t, f.cache.Put(context.Background(), "roadsurfer", []models.PriceObservation{{
		CompanyName:     "roadsurfer",
		BaseNightlyRate: 95,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(now),
		ScrapeTimestamp: now,
		Source:          models.SourceLive,
	}}))

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, models.SourceCacheFallback, res.Source)
	require.Len(t, res.Observations, 1)
	require.Equal(t, 95.0, res.Observations[0].BaseNightlyRate)
	require.Equal(t, models.SourceCacheFallback, res.Observations[0].Source)
	require.Contains(t, res.Observations[0].Notes, "resilience cache")
}

func TestFallbackUsesStoreWhenCacheEmpty(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){transportErr()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	old := time.Now().AddDate(0, 0, -5)
	_, err := f.store.Insert(context.Background(), models.PriceObservation{
		CompanyName:     "roadsurfer",
		BaseNightlyRate: 88,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(old),
		ScrapeTimestamp: old,
		Source:          models.SourceLive,
	})
	require.NoError(t, err)

	res := f.orch.ScrapeOne(context.Background(), c)

	require.Equal(t, models.SourceStoreFallback, res.Source)
	require.Len(t, res.Observations, 1)
	require.Equal(t, 88.0, res.Observations[0].BaseNightlyRate)
	require.Equal(t, models.SourceStoreFallback, res.Observations[0].Source)
}

func TestScrapeAllKeepsRosterOrder(t *testing.T) {
	a := comp("alpha", "direct")
	b := comp("bravo", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){ok()}}
	f := newFixture(t, []models.Competitor{a, b}, map[string]scrape.Strategy{"direct": fake})

	results := f.orch.ScrapeAll(context.Background())

	require.Len(t, results, 2)
	require.Equal(t, "alpha", results[0].Company)
	require.Equal(t, "bravo", results[1].Company)
}

// recordingChannel collects dispatched alerts for cycle-level assertions.
type recordingChannel struct {
	alerts []models.Alert
}

func (c *recordingChannel) Name() string  { return "recording" }
func (c *recordingChannel) Enabled() bool { return true }
func (c *recordingChannel) Send(_ context.Context, alerts []models.Alert) (int, error) {
	c.alerts = append(c.alerts, alerts...)
	return len(alerts), nil
}
func (c *recordingChannel) SendSummary(context.Context, alert.Summary) error { return nil }

func TestRunCycleDispatchesScrapeFailureAlerts(t *testing.T) {
	c := comp("roadsurfer", "direct")
	fake := &fakeStrategy{name: "direct", script: []func() (*scrape.Outcome, error){transportErr()}}
	f := newFixture(t, []models.Competitor{c}, map[string]scrape.Strategy{"direct": fake})

	ch := &recordingChannel{}
	dispatcher := alert.NewDispatcher([]alert.Channel{ch}, time.Hour, logutil.New())
	analyzer := analyze.New(f.store)

	report := f.orch.RunCycle(context.Background(), analyzer, dispatcher)

	require.Equal(t, 1, report.FallbackUsed)
	require.Zero(t, report.LiveCount)
	require.Equal(t, 1, report.AlertsSent)
	require.Len(t, ch.alerts, 1)
	require.Equal(t, models.SignalScrapeFailure, ch.alerts[0].Signal)
	// Estimate-backed results are the worst degradation
	require.Equal(t, models.SeverityHigh, ch.alerts[0].Severity)
}
