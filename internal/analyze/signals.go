package analyze

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"camperwatch/internal/models"
)

// Velocity thresholds, in currency units per day, for turning a trend into
// an actionable signal.
const (
	signalVelocity   = 1.0
	criticalVelocity = 5.0
)

// Signals turns analyzer output into dispatchable alerts: strong trends
// become price_drop/price_spike signals, z-score outliers become anomaly
// signals.
func (a *Analyzer) Signals(ctx context.Context, windowDays int) ([]models.Alert, error) {
	now := time.Now()
	var alerts []models.Alert

	trends, err := a.Trends(ctx, "", windowDays)
	if err != nil {
		return nil, err
	}
	for _, t := range trends {
		if t.Points < 3 || math.Abs(t.Velocity) < signalVelocity {
			continue
		}
		sev := models.SeverityMedium
		if math.Abs(t.Velocity) >= criticalVelocity {
			sev = models.SeverityHigh
		}
		al := models.Alert{
			ID:         uuid.NewString(),
			Severity:   sev,
			Competitor: t.Company,
			CreatedAt:  now,
		}
		if t.Direction == DirectionFalling {
			al.Signal = models.SignalPriceDrop
			al.Message = fmt.Sprintf("%s nightly rates falling %.2f/day over %dd window", t.Company, -t.Velocity, windowDays)
			al.Action = "Review own pricing against this competitor"
			al.Impact = "Undercutting risk if the slide continues"
		} else if t.Direction == DirectionRising {
			al.Signal = models.SignalPriceSpike
			al.Message = fmt.Sprintf("%s nightly rates rising %.2f/day over %dd window", t.Company, t.Velocity, windowDays)
			al.Action = "Opportunity to raise rates or hold share"
			al.Impact = "Market ceiling moving up"
		} else {
			continue
		}
		alerts = append(alerts, al)
	}

	anomalies, err := a.Anomalies(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, an := range anomalies {
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			Severity:   an.Severity,
			Signal:     models.SignalAnomaly,
			Competitor: an.Observation.CompanyName,
			Message: fmt.Sprintf("%s observed at %.2f %s (z=%.1f vs 30d mean)",
				an.Observation.CompanyName, an.Observation.BaseNightlyRate, an.Observation.Currency, an.ZScore),
			Action:    "Verify the scrape and check for promotions",
			Impact:    "Possible flash sale or extraction error",
			CreatedAt: now,
		})
	}

	return alerts, nil
}
