package analyze

import (
	"context"
	"time"
)

// SeasonalReport holds day-of-week and month price averages. All available
// rows are weighted equally, regardless of currency and location.
type SeasonalReport struct {
	Company     string             `json:"company,omitempty"`
	WeekdayAvg  map[string]float64 `json:"weekday_avg"`
	MonthAvg    map[string]float64 `json:"month_avg"`
	PeakDay     string             `json:"peak_day,omitempty"`
	LowestDay   string             `json:"lowest_day,omitempty"`
	PeakMonth   string             `json:"peak_month,omitempty"`
	LowestMonth string             `json:"lowest_month,omitempty"`
}

// Seasonal computes day-of-week and month averages for a company, or for
// the whole market when company is empty.
func (a *Analyzer) Seasonal(ctx context.Context, company string) (SeasonalReport, error) {
	obs, err := a.store.Recent(ctx, company, time.Time{})
	if err != nil {
		return SeasonalReport{}, err
	}

	weekdaySum := map[string]float64{}
	weekdayN := map[string]int{}
	monthSum := map[string]float64{}
	monthN := map[string]int{}

	for _, o := range obs {
		t, err := time.Parse("2006-01-02", o.ScrapeDate)
		if err != nil {
			continue
		}
		wd := t.Weekday().String()
		mo := t.Month().String()
		weekdaySum[wd] += o.BaseNightlyRate
		weekdayN[wd]++
		monthSum[mo] += o.BaseNightlyRate
		monthN[mo]++
	}

	report := SeasonalReport{
		Company:    company,
		WeekdayAvg: map[string]float64{},
		MonthAvg:   map[string]float64{},
	}
	for wd, sum := range weekdaySum {
		report.WeekdayAvg[wd] = sum / float64(weekdayN[wd])
	}
	for mo, sum := range monthSum {
		report.MonthAvg[mo] = sum / float64(monthN[mo])
	}
	report.PeakDay, report.LowestDay = extremes(report.WeekdayAvg)
	report.PeakMonth, report.LowestMonth = extremes(report.MonthAvg)
	return report, nil
}

func extremes(avgs map[string]float64) (peak, lowest string) {
	var maxV, minV float64
	for k, v := range avgs {
		if peak == "" || v > maxV {
			peak, maxV = k, v
		}
		if lowest == "" || v < minV {
			lowest, minV = k, v
		}
	}
	return peak, lowest
}
