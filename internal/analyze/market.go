package analyze

import (
	"context"
	"sort"
	"time"
)

// MarketPosition places one company relative to the market over a window.
type MarketPosition struct {
	Company     string  `json:"company"`
	AvgPrice    float64 `json:"avg_price"`
	Percentile  float64 `json:"percentile"`
	GapToMarket float64 `json:"gap_to_market_avg"`
}

// CompareMarket computes per-company average price, percentile rank and gap
// to the market average over the trailing window.
func (a *Analyzer) CompareMarket(ctx context.Context, windowDays int) ([]MarketPosition, error) {
	companies, err := a.store.Companies(ctx)
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	positions := make([]MarketPosition, 0, len(companies))
	var marketSum float64
	for _, name := range companies {
		obs, err := a.store.Recent(ctx, name, since)
		if err != nil {
			return nil, err
		}
		if len(obs) == 0 {
			continue
		}
		var sum float64
		for _, o := range obs {
			sum += o.BaseNightlyRate
		}
		avg := sum / float64(len(obs))
		positions = append(positions, MarketPosition{Company: name, AvgPrice: avg})
		marketSum += avg
	}
	if len(positions) == 0 {
		return nil, nil
	}

	marketAvg := marketSum / float64(len(positions))
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].AvgPrice < positions[j].AvgPrice
	})
	for i := range positions {
		if len(positions) == 1 {
			positions[i].Percentile = 50
		} else {
			positions[i].Percentile = 100 * float64(i) / float64(len(positions)-1)
		}
		positions[i].GapToMarket = positions[i].AvgPrice - marketAvg
	}
	return positions, nil
}
