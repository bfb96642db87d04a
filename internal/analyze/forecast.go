package analyze

import (
	"context"
	"fmt"
	"time"
)

// Confidence of one forecast point.
type Confidence string

const (
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ForecastPoint is one predicted nightly rate.
type ForecastPoint struct {
	Date           string     `json:"date"`
	PredictedPrice float64    `json:"predicted_price"`
	Confidence     Confidence `json:"confidence"`
}

// Forecast predicts daysAhead nightly rates for a company: a 7-day moving
// average plus linear extrapolation of the last 7 day-to-day deltas.
// Predictions are clipped at 0; the first 3 days carry medium confidence,
// later ones low.
func (a *Analyzer) Forecast(ctx context.Context, company string, daysAhead int) ([]ForecastPoint, error) {
	if daysAhead < 1 {
		return nil, fmt.Errorf("analyze: forecast: daysAhead must be >= 1, got %d", daysAhead)
	}

	obs, err := a.store.Recent(ctx, company, time.Now().AddDate(0, 0, -60))
	if err != nil {
		return nil, err
	}
	series := dailySeries(obs)
	if len(series) == 0 {
		return nil, fmt.Errorf("analyze: forecast: no observations for %s", company)
	}

	// 7-day moving average as the base level
	tail := series
	if len(tail) > 7 {
		tail = tail[len(tail)-7:]
	}
	var base float64
	for _, p := range tail {
		base += p.value
	}
	base /= float64(len(tail))

	// Average of the last up-to-7 deltas as the per-day drift
	var drift float64
	if len(series) >= 2 {
		deltas := make([]float64, 0, 7)
		for i := len(series) - 1; i > 0 && len(deltas) < 7; i-- {
			deltas = append(deltas, series[i].value-series[i-1].value)
		}
		for _, d := range deltas {
			drift += d
		}
		drift /= float64(len(deltas))
	}

	lastDate, _ := time.Parse("2006-01-02", series[len(series)-1].date)
	out := make([]ForecastPoint, 0, daysAhead)
	for i := 1; i <= daysAhead; i++ {
		predicted := base + drift*float64(i)
		if predicted < 0 {
			predicted = 0
		}
		conf := ConfidenceLow
		if i <= 3 {
			conf = ConfidenceMedium
		}
		out = append(out, ForecastPoint{
			Date:           lastDate.AddDate(0, 0, i).Format("2006-01-02"),
			PredictedPrice: predicted,
			Confidence:     conf,
		})
	}
	return out, nil
}
