package validate

import (
	"context"
	"fmt"
	"math"
	"time"

	"camperwatch/config"
	"camperwatch/internal/extract"
	"camperwatch/internal/models"
	"camperwatch/internal/store"
)

// outlierWindow is how far back the company-local anomaly check looks.
const outlierWindow = 14 * 24 * time.Hour

// Rejection records why one candidate was discarded.
type Rejection struct {
	Candidate extract.Candidate
	Reason    string
}

// Result is the outcome of validating one candidate batch. Candidates are
// accepted or rejected individually, never as a batch.
type Result struct {
	Accepted []models.PriceObservation
	Rejected []Rejection
}

// Validator enforces record invariants and rejects duplicates and
// implausible values before anything reaches the store.
type Validator struct {
	bounds      map[models.Currency]config.PriceBounds
	maxDiscount float64
	store       *store.Store
}

func New(bounds map[models.Currency]config.PriceBounds, maxDiscount float64, st *store.Store) *Validator {
	return &Validator{bounds: bounds, maxDiscount: maxDiscount, store: st}
}

// Batch validates extractor candidates against the competitor's bounds and
// the store's duplicate and anomaly state. Rules apply in order; the first
// failure rejects a candidate.
func (v *Validator) Batch(ctx context.Context, comp models.Competitor, candidates []extract.Candidate, strategyName, location string, now time.Time) (Result, error) {
	var res Result

	stats, err := v.recentStats(ctx, comp.Name, now)
	if err != nil {
		return Result{}, err
	}

	for _, c := range candidates {
		obs := models.PriceObservation{
			CompanyName:     comp.Name,
			BaseNightlyRate: c.Value,
			Currency:        comp.Currency,
			ScrapeDate:      models.DateOf(now),
			ScrapeTimestamp: now,
			Location:        location,
			StrategyUsed:    strategyName,
			Source:          models.SourceLive,
			Notes:           fmt.Sprintf("snippet: %s", c.RawSnippet),
		}

		if reason := v.check(ctx, comp, c, obs); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Candidate: c, Reason: reason})
			continue
		}

		// Company-local anomaly check: keep but flag, for the analyzer to
		// weigh, instead of silently accepting a new normal.
		if stats.n >= 3 && stats.stddev > 0 {
			if z := math.Abs(c.Value-stats.mean) / stats.stddev; z > 3 {
				obs.Notes += " outlier"
			}
		}

		res.Accepted = append(res.Accepted, obs)
	}
	return res, nil
}

func (v *Validator) check(ctx context.Context, comp models.Competitor, c extract.Candidate, obs models.PriceObservation) string {
	if obs.CompanyName == "" || obs.BaseNightlyRate == 0 {
		return "missing required fields"
	}
	if c.CurrencyHint != "" && c.CurrencyHint != comp.Currency {
		return fmt.Sprintf("currency mismatch: extracted %s, competitor lists %s", c.CurrencyHint, comp.Currency)
	}

	b, ok := v.bounds[comp.Currency]
	if !ok {
		return fmt.Sprintf("no price bounds configured for %s", comp.Currency)
	}
	if obs.BaseNightlyRate < b.Min || obs.BaseNightlyRate > b.Max {
		return fmt.Sprintf("rate %.2f outside [%.2f, %.2f] %s", obs.BaseNightlyRate, b.Min, b.Max, comp.Currency)
	}
	if obs.DiscountPercentage < 0 || obs.DiscountPercentage > v.maxDiscount {
		return fmt.Sprintf("discount %.1f outside [0, %.1f]", obs.DiscountPercentage, v.maxDiscount)
	}

	dup, err := v.store.Exists(ctx, obs.CompanyName, obs.BaseNightlyRate, obs.ScrapeDate)
	if err != nil {
		return fmt.Sprintf("duplicate check failed: %v", err)
	}
	if dup {
		return "duplicate (company, base_price, scrape_date)"
	}
	return ""
}

type runningStats struct {
	n      int
	mean   float64
	stddev float64
}

func (v *Validator) recentStats(ctx context.Context, company string, now time.Time) (runningStats, error) {
	recent, err := v.store.Recent(ctx, company, now.Add(-outlierWindow))
	if err != nil {
		return runningStats{}, err
	}
	var s runningStats
	s.n = len(recent)
	if s.n == 0 {
		return s, nil
	}
	var sum float64
	for _, o := range recent {
		sum += o.BaseNightlyRate
	}
	s.mean = sum / float64(s.n)
	var sq float64
	for _, o := range recent {
		d := o.BaseNightlyRate - s.mean
		sq += d * d
	}
	s.stddev = math.Sqrt(sq / float64(s.n))
	return s, nil
}
