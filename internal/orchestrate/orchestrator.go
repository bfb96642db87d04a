package orchestrate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"camperwatch/config"
	"camperwatch/internal/alert"
	"camperwatch/internal/analyze"
	"camperwatch/internal/breaker"
	"camperwatch/internal/cache"
	"camperwatch/internal/extract"
	"camperwatch/internal/logutil"
	"camperwatch/internal/models"
	"camperwatch/internal/scrape"
	"camperwatch/internal/store"
	"camperwatch/internal/validate"
)

// FailureKind classifies one failed strategy attempt. Only transport
// failures retry within a strategy; only transport and challenge failures
// count toward the circuit breaker.
type FailureKind string

const (
	FailTransport  FailureKind = "transport"
	FailChallenge  FailureKind = "challenge"
	FailExtraction FailureKind = "extraction"
	FailValidation FailureKind = "validation"
)

// Attempt records one failed strategy attempt for the result's audit trail.
type Attempt struct {
	Strategy string      `json:"strategy"`
	Kind     FailureKind `json:"kind"`
	Detail   string      `json:"detail,omitempty"`
}

// ScrapeResult is what one competitor's pipeline run produced. It never
// carries an error: every internal failure is converted into a fallback
// observation plus the attempt trail.
type ScrapeResult struct {
	Company      string                    `json:"company"`
	Observations []models.PriceObservation `json:"observations"`
	Source       models.Source             `json:"source"`
	Strategy     string                    `json:"strategy,omitempty"`
	Inserted     int                       `json:"inserted"`
	Failures     []Attempt                 `json:"failures,omitempty"`
	Notes        string                    `json:"notes,omitempty"`
}

// maxBackoff caps the exponential retry delay.
const maxBackoff = 30 * time.Second

// Orchestrator composes strategies, breaker, cache, extractor, validator and
// store into the scrape pipeline.
type Orchestrator struct {
	cfg        *config.Config
	roster     []models.Competitor
	strategies map[string]scrape.Strategy
	store      *store.Store
	cache      *cache.Cache
	breaker    *breaker.Breaker
	validator  *validate.Validator
	logger     *logutil.Logger

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg *config.Config, roster []models.Competitor, strategies map[string]scrape.Strategy,
	st *store.Store, ca *cache.Cache, br *breaker.Breaker, v *validate.Validator, logger *logutil.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		roster:     roster,
		strategies: strategies,
		store:      st,
		cache:      ca,
		breaker:    br,
		validator:  v,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// ScrapeAll runs the pipeline for the whole roster in priority order with
// bounded parallelism. Per-competitor work is strictly sequential.
func (o *Orchestrator) ScrapeAll(ctx context.Context) []ScrapeResult {
	results := make([]ScrapeResult, len(o.roster))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentScrapers)
	for i, comp := range o.roster {
		i, comp := i, comp
		g.Go(func() error {
			results[i] = o.ScrapeOne(gctx, comp)
			return nil
		})
	}
	// Workers never return errors; Wait only observes ctx cancellation
	_ = g.Wait()
	return results
}

// ScrapeOne runs the full pipeline for one competitor: breaker gate,
// ordered strategies with retries and backoff, extraction, validation,
// persistence, and the fallback chain when everything fails.
func (o *Orchestrator) ScrapeOne(ctx context.Context, comp models.Competitor) ScrapeResult {
	res := ScrapeResult{Company: comp.Name}

	if !o.breaker.Allow(comp.Name) {
		snap := o.breaker.State(comp.Name)
		res.Notes = fmt.Sprintf("breaker open until %s; skipped live scraping", snap.OpenUntil.Format(time.RFC3339))
		o.logger.Warn("%s: circuit open, serving fallback", comp.Name)
		return o.fallback(ctx, comp, res)
	}

	req := o.buildRequest(comp)

	for _, name := range comp.Strategies {
		strat, ok := o.strategies[name]
		if !ok {
			res.Failures = append(res.Failures, Attempt{Strategy: name, Kind: FailExtraction, Detail: "strategy not registered"})
			continue
		}

		kind, detail, done := o.runStrategy(ctx, comp, req, strat, &res)
		if done {
			return res
		}
		res.Failures = append(res.Failures, Attempt{Strategy: name, Kind: kind, Detail: detail})
		if kind == FailTransport || kind == FailChallenge {
			o.breaker.RecordFailure(comp.Name)
		}
		if ctx.Err() != nil {
			break
		}
	}

	res.Notes = "all strategies exhausted"
	return o.fallback(ctx, comp, res)
}

// runStrategy executes one strategy with retries. It returns done=true when
// the competitor's result is complete (observations persisted).
func (o *Orchestrator) runStrategy(ctx context.Context, comp models.Competitor, req scrape.Request,
	strat scrape.Strategy, res *ScrapeResult) (kind FailureKind, detail string, done bool) {

	for attempt := 0; attempt < o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, backoff(o.cfg.RetryDelay, attempt)); err != nil {
				return FailTransport, "cancelled during backoff", false
			}
		}
		if err := o.waitDomain(ctx, comp.BaseURL); err != nil {
			return FailTransport, "cancelled waiting for rate limit", false
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ScrapingTimeout)
		outcome, err := strat.Execute(attemptCtx, req)
		cancel()

		if err != nil {
			kind, detail = FailTransport, err.Error()
			o.logger.Warn("%s: %s attempt %d/%d: %v", comp.Name, strat.Name(), attempt+1, o.cfg.MaxRetries, err)
			continue // transport failures retry
		}

		switch outcome.Classification {
		case scrape.ClassBlockedByChallenge:
			return FailChallenge, "blocked by anti-bot challenge", false
		case scrape.ClassNavigationError:
			kind, detail = FailTransport, "navigation error"
			continue
		case scrape.ClassEmpty:
			return FailExtraction, "empty page", false
		}

		limits := o.limitsFor(comp.Currency)
		candidates, implausible := extract.Prices(outcome, limits)
		if implausible > 0 {
			o.logger.Debug("%s: dropped %d implausible price candidate(s) outside %.0f-%.0f",
				comp.Name, implausible, limits.Min, limits.Max)
		}
		if len(candidates) == 0 {
			return FailExtraction, "no price candidates found", false
		}

		batch, err := o.validator.Batch(ctx, comp, candidates, strat.Name(), req.Location, o.now())
		if err != nil {
			o.logger.Error("%s: validation: %v", comp.Name, err)
			return FailValidation, err.Error(), false
		}
		if len(batch.Accepted) == 0 {
			return FailValidation, rejectionSummary(batch), false
		}
		for _, rej := range batch.Rejected {
			o.logger.Debug("%s: rejected %.2f: %s", comp.Name, rej.Candidate.Value, rej.Reason)
		}

		inserted := 0
		for _, obs := range batch.Accepted {
			ok, err := o.store.Insert(ctx, obs)
			if err != nil {
				o.logger.Error("%s: store insert: %v", comp.Name, err)
				continue
			}
			if ok {
				inserted++
			}
		}

		if err := o.cache.Put(ctx, comp.Name, batch.Accepted); err != nil {
			o.logger.Warn("%s: cache refresh: %v", comp.Name, err)
		}
		o.breaker.RecordSuccess(comp.Name)

		res.Observations = batch.Accepted
		res.Source = models.SourceLive
		res.Strategy = strat.Name()
		res.Inserted = inserted
		o.logger.Info("%s: %d observation(s) via %s (%d new)", comp.Name, len(batch.Accepted), strat.Name(), inserted)
		return "", "", true
	}

	if kind == "" {
		kind, detail = FailTransport, "retries exhausted"
	}
	return kind, detail, false
}

// fallback serves the best stale data available: fresh cache, then the most
// recent store row, then a market-derived estimate. It never fails.
func (o *Orchestrator) fallback(ctx context.Context, comp models.Competitor, res ScrapeResult) ScrapeResult {
	if cached, err := o.cache.GetIfFresh(ctx, comp.Name, o.cfg.CacheTTL); err == nil && len(cached) > 0 {
		for i := range cached {
			cached[i].Source = models.SourceCacheFallback
			cached[i].Notes = appendNote(cached[i].Notes, "served from resilience cache")
		}
		res.Observations = cached
		res.Source = models.SourceCacheFallback
		return res
	}

	if latest, err := o.store.Latest(ctx, comp.Name); err == nil && latest != nil {
		obs := *latest
		obs.Source = models.SourceStoreFallback
		obs.Notes = appendNote(obs.Notes, "most recent stored observation")
		res.Observations = []models.PriceObservation{obs}
		res.Source = models.SourceStoreFallback
		return res
	}

	res.Observations = []models.PriceObservation{o.estimate(ctx, comp)}
	res.Source = models.SourceEstimate
	return res
}

// estimate synthesizes a market-derived placeholder when neither cache nor
// store has anything for the competitor.
func (o *Orchestrator) estimate(ctx context.Context, comp models.Competitor) models.PriceObservation {
	now := o.now()
	value := 0.0
	if agg, err := o.store.AggregateWindow(ctx, "", 30*24*time.Hour); err == nil && agg.Count > 0 {
		value = agg.Avg
	}
	if value == 0 {
		b := o.cfg.Bounds[comp.Currency]
		value = (b.Min + b.Max) / 2
	}
	return models.PriceObservation{
		CompanyName:     comp.Name,
		BaseNightlyRate: value,
		Currency:        comp.Currency,
		ScrapeDate:      models.DateOf(now),
		ScrapeTimestamp: now,
		IsEstimated:     true,
		Source:          models.SourceEstimate,
		Notes:           "estimated from 30d market average; no live or cached data",
	}
}

func (o *Orchestrator) buildRequest(comp models.Competitor) scrape.Request {
	location := ""
	if len(comp.SearchLocations) > 0 {
		location = comp.SearchLocations[0]
	}
	checkIn := o.now().AddDate(0, 0, 7)
	return scrape.Request{
		Competitor: comp,
		Location:   location,
		CheckIn:    checkIn,
		CheckOut:   checkIn.AddDate(0, 0, 3),
	}
}

func (o *Orchestrator) limitsFor(cur models.Currency) extract.Limits {
	b := o.cfg.Bounds[cur]
	return extract.Limits{Min: b.Min, Max: b.Max}
}

// waitDomain enforces the minimum inter-request delay per target domain.
func (o *Orchestrator) waitDomain(ctx context.Context, baseURL string) error {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	o.limMu.Lock()
	lim, ok := o.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(o.cfg.RateLimitDelay), 1)
		o.limiters[host] = lim
	}
	o.limMu.Unlock()
	return lim.Wait(ctx)
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func rejectionSummary(r validate.Result) string {
	if len(r.Rejected) == 0 {
		return "no valid candidates"
	}
	parts := make([]string, 0, len(r.Rejected))
	for _, rej := range r.Rejected {
		parts = append(parts, fmt.Sprintf("%.2f: %s", rej.Candidate.Value, rej.Reason))
	}
	return "all candidates rejected: " + strings.Join(parts, "; ")
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + "; " + extra
}

// CycleReport summarizes one scheduled run.
type CycleReport struct {
	Results      []ScrapeResult `json:"results"`
	AlertsSent   int            `json:"alerts_sent"`
	Suppressed   int            `json:"alerts_suppressed"`
	LiveCount    int            `json:"live_count"`
	FallbackUsed int            `json:"fallback_used"`
}

// RunCycle is the scheduler callback: scrape the roster, derive signals and
// dispatch alerts. Internal failures never escape; the report carries them.
func (o *Orchestrator) RunCycle(ctx context.Context, analyzer *analyze.Analyzer, dispatcher *alert.Dispatcher) CycleReport {
	report := CycleReport{Results: o.ScrapeAll(ctx)}

	var alerts []models.Alert
	for _, r := range report.Results {
		if r.Source == models.SourceLive {
			report.LiveCount++
			continue
		}
		report.FallbackUsed++
		sev := models.SeverityMedium
		if r.Source == models.SourceEstimate {
			sev = models.SeverityHigh
		}
		alerts = append(alerts, models.Alert{
			ID:         fmt.Sprintf("scrape-%s-%d", r.Company, o.now().Unix()),
			Severity:   sev,
			Signal:     models.SignalScrapeFailure,
			Competitor: r.Company,
			Message:    fmt.Sprintf("Live scraping failed for %s; serving %s data", r.Company, r.Source),
			Action:     "Check strategy configuration and site changes",
			Impact:     "Market picture degrades while the gap persists",
			CreatedAt:  o.now(),
		})
	}

	signals, err := analyzer.Signals(ctx, 7)
	if err != nil {
		o.logger.Error("analyzer signals: %v", err)
	} else {
		alerts = append(alerts, signals...)
	}

	if len(alerts) > 0 {
		res := dispatcher.Send(ctx, alerts)
		report.Suppressed = len(res.Suppressed)
		for _, cr := range res.Delivered {
			report.AlertsSent += cr.Sent
		}
	}
	return report
}
