package analyze

import (
	"context"
	"math"
	"sort"
	"time"

	"camperwatch/internal/models"
	"camperwatch/internal/store"
)

// Analyzer computes market statistics from the pricing store. Every output
// is a pure function of store contents at call time; no state is retained
// between calls.
type Analyzer struct {
	store *store.Store
}

func New(st *store.Store) *Analyzer {
	return &Analyzer{store: st}
}

// Direction of a price trend.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

// stableSlope is the |slope| below which a trend counts as stable,
// in currency units per day.
const stableSlope = 0.1

// Pattern labels notable shapes inside a trend window.
type Pattern string

const (
	PatternSpike              Pattern = "spike"
	PatternDrop               Pattern = "drop"
	PatternContinuousIncrease Pattern = "continuous_increase"
	PatternContinuousDecrease Pattern = "continuous_decrease"
	PatternOscillating        Pattern = "oscillating"
)

// TrendReport summarizes one company's recent price movement.
type TrendReport struct {
	Company    string    `json:"company"`
	Direction  Direction `json:"direction"`
	Velocity   float64   `json:"velocity"`   // currency units per day
	Volatility float64   `json:"volatility"` // stddev over the window
	Patterns   []Pattern `json:"patterns,omitempty"`
	Points     int       `json:"points"`
}

// Trends analyzes one company's window, or every observed company when
// company is empty.
func (a *Analyzer) Trends(ctx context.Context, company string, windowDays int) ([]TrendReport, error) {
	companies, err := a.resolveCompanies(ctx, company)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	var reports []TrendReport
	for _, name := range companies {
		obs, err := a.store.Recent(ctx, name, since)
		if err != nil {
			return nil, err
		}
		reports = append(reports, trendOf(name, dailySeries(obs)))
	}
	return reports, nil
}

func trendOf(company string, series []dayPoint) TrendReport {
	r := TrendReport{Company: company, Direction: DirectionStable, Points: len(series)}
	if len(series) < 2 {
		return r
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.value
	}

	slope := regressionSlope(series)
	r.Velocity = slope
	switch {
	case slope >= stableSlope:
		r.Direction = DirectionRising
	case slope <= -stableSlope:
		r.Direction = DirectionFalling
	}

	mean, stddev := meanStddev(values)
	r.Volatility = stddev
	r.Patterns = detectPatterns(values, mean, stddev)
	return r
}

// regressionSlope fits price against day index and returns units/day.
func regressionSlope(series []dayPoint) float64 {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range series {
		x := float64(p.day)
		sumX += x
		sumY += p.value
		sumXY += x * p.value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func detectPatterns(values []float64, mean, stddev float64) []Pattern {
	var out []Pattern
	if stddev > 0 {
		for _, v := range values {
			if (v-mean)/stddev > 2 {
				out = append(out, PatternSpike)
				break
			}
		}
		for _, v := range values {
			if (mean-v)/stddev > 2 {
				out = append(out, PatternDrop)
				break
			}
		}
	}

	// Strict monotonicity over the whole window. Deliberately strict: a
	// tolerance would change what collaborators have learned to expect.
	increasing, decreasing := true, true
	flips := 0
	var lastSign int
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d <= 0 {
			increasing = false
		}
		if d >= 0 {
			decreasing = false
		}
		sign := 0
		if d > 0 {
			sign = 1
		} else if d < 0 {
			sign = -1
		}
		if sign != 0 && lastSign != 0 && sign != lastSign {
			flips++
		}
		if sign != 0 {
			lastSign = sign
		}
	}
	if len(values) >= 3 {
		if increasing {
			out = append(out, PatternContinuousIncrease)
		}
		if decreasing {
			out = append(out, PatternContinuousDecrease)
		}
		if flips >= 3 {
			out = append(out, PatternOscillating)
		}
	}
	return out
}

type dayPoint struct {
	day   int
	date  string
	value float64
}

// dailySeries averages observations per scrape date and orders them by day
// index relative to the first date.
func dailySeries(obs []models.PriceObservation) []dayPoint {
	if len(obs) == 0 {
		return nil
	}
	byDate := make(map[string][]float64)
	for _, o := range obs {
		byDate[o.ScrapeDate] = append(byDate[o.ScrapeDate], o.BaseNightlyRate)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	first, _ := time.Parse("2006-01-02", dates[0])
	out := make([]dayPoint, 0, len(dates))
	for _, d := range dates {
		vals := byDate[d]
		var sum float64
		for _, v := range vals {
			sum += v
		}
		t, _ := time.Parse("2006-01-02", d)
		out = append(out, dayPoint{
			day:   int(t.Sub(first).Hours() / 24),
			date:  d,
			value: sum / float64(len(vals)),
		})
	}
	return out
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func (a *Analyzer) resolveCompanies(ctx context.Context, company string) ([]string, error) {
	if company != "" {
		return []string{company}, nil
	}
	return a.store.Companies(ctx)
}
