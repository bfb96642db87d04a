package analyze

import (
	"context"
	"math"
	"time"

	"camperwatch/internal/models"
)

// anomalyWindowDays is how far back the detector looks per company.
const anomalyWindowDays = 30

// Anomaly is one observation whose value deviates from its company's recent
// mean by more than 2 standard deviations.
type Anomaly struct {
	Observation models.PriceObservation `json:"observation"`
	ZScore      float64                 `json:"z_score"`
	Severity    models.Severity         `json:"severity"`
}

// Anomalies returns the z-score outliers in a company's recent window (all
// companies when company is empty). A company needs at least 3 points to be
// scored. Severity is HIGH when |z| > 3, MEDIUM otherwise.
func (a *Analyzer) Anomalies(ctx context.Context, company string) ([]Anomaly, error) {
	companies, err := a.resolveCompanies(ctx, company)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -anomalyWindowDays)
	var out []Anomaly
	for _, name := range companies {
		obs, err := a.store.Recent(ctx, name, since)
		if err != nil {
			return nil, err
		}
		if len(obs) < 3 {
			continue
		}
		values := make([]float64, len(obs))
		for i, o := range obs {
			values[i] = o.BaseNightlyRate
		}
		mean, stddev := meanStddev(values)
		if stddev == 0 {
			continue
		}
		for _, o := range obs {
			z := (o.BaseNightlyRate - mean) / stddev
			if math.Abs(z) <= 2 {
				continue
			}
			sev := models.SeverityMedium
			if math.Abs(z) > 3 {
				sev = models.SeverityHigh
			}
			out = append(out, Anomaly{Observation: o, ZScore: z, Severity: sev})
		}
	}
	return out, nil
}
