package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"camperwatch/internal/models"
)

// FreshnessBucket classifies how recent a company's newest observation is.
type FreshnessBucket string

const (
	BucketFresh     FreshnessBucket = "fresh"      // <= 1 day
	BucketStale     FreshnessBucket = "stale"      // 2..N days
	BucketVeryStale FreshnessBucket = "very_stale" // > N days or never observed
)

// FreshnessReport buckets each roster company by observation age.
type FreshnessReport struct {
	Buckets map[FreshnessBucket][]string `json:"buckets"`
	AgeDays map[string]float64           `json:"age_days"`
}

// Freshness computes the freshness report for the given roster. stalenessDays
// is the boundary between stale and very_stale.
func (s *Store) Freshness(ctx context.Context, roster []string, stalenessDays int) (FreshnessReport, error) {
	report := FreshnessReport{
		Buckets: map[FreshnessBucket][]string{},
		AgeDays: map[string]float64{},
	}
	now := time.Now()

	for _, company := range roster {
		latest, err := s.Latest(ctx, company)
		if err != nil {
			return FreshnessReport{}, err
		}
		if latest == nil {
			report.Buckets[BucketVeryStale] = append(report.Buckets[BucketVeryStale], company)
			report.AgeDays[company] = -1
			continue
		}
		age := now.Sub(latest.ScrapeTimestamp).Hours() / 24
		report.AgeDays[company] = age
		switch {
		case age <= 1:
			report.Buckets[BucketFresh] = append(report.Buckets[BucketFresh], company)
		case age <= float64(stalenessDays):
			report.Buckets[BucketStale] = append(report.Buckets[BucketStale], company)
		default:
			report.Buckets[BucketVeryStale] = append(report.Buckets[BucketVeryStale], company)
		}
	}
	return report, nil
}

// QualityWeights control the quality score decomposition. Zero value means
// equal weights.
type QualityWeights struct {
	Freshness    float64
	Completeness float64
	Validity     float64
}

// QualityReport decomposes data quality into freshness, completeness and
// validity, each in [0, 100].
type QualityReport struct {
	Score        float64 `json:"score"`
	Freshness    float64 `json:"freshness"`
	Completeness float64 `json:"completeness"`
	Validity     float64 `json:"validity"`
}

// Quality scores the store's content against the roster. Freshness rewards
// companies with same-day data, completeness counts companies with any data
// inside the staleness window, validity is the share of recent rows that are
// live extractions rather than fallbacks, estimates or flagged outliers.
func (s *Store) Quality(ctx context.Context, roster []string, stalenessDays int, w QualityWeights) (QualityReport, error) {
	if len(roster) == 0 {
		return QualityReport{}, fmt.Errorf("store: quality: empty roster")
	}
	if w == (QualityWeights{}) {
		w = QualityWeights{Freshness: 1, Completeness: 1, Validity: 1}
	}

	fr, err := s.Freshness(ctx, roster, stalenessDays)
	if err != nil {
		return QualityReport{}, err
	}

	var freshScore float64
	for _, company := range roster {
		switch age := fr.AgeDays[company]; {
		case age >= 0 && age <= 1:
			freshScore += 100
		case age > 1 && age <= float64(stalenessDays):
			freshScore += 50
		}
	}
	freshScore /= float64(len(roster))

	withData := len(roster) - len(fr.Buckets[BucketVeryStale])
	for _, company := range fr.Buckets[BucketVeryStale] {
		// Companies observed before but outside the window still count as data
		if fr.AgeDays[company] >= 0 {
			withData++
		}
	}
	completeness := 100 * float64(withData) / float64(len(roster))

	recent, err := s.Recent(ctx, "", time.Now().AddDate(0, 0, -7))
	if err != nil {
		return QualityReport{}, err
	}
	validity := 100.0
	if len(recent) > 0 {
		valid := 0
		for _, o := range recent {
			if o.Source == models.SourceLive && !o.IsEstimated && !strings.Contains(o.Notes, "outlier") {
				valid++
			}
		}
		validity = 100 * float64(valid) / float64(len(recent))
	}

	total := w.Freshness + w.Completeness + w.Validity
	score := (freshScore*w.Freshness + completeness*w.Completeness + validity*w.Validity) / total

	return QualityReport{
		Score:        round2(score),
		Freshness:    round2(freshScore),
		Completeness: round2(completeness),
		Validity:     round2(validity),
	}, nil
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
