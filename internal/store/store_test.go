package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camperwatch/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func obsAt(company string, rate float64, ts time.Time) models.PriceObservation {
	return models.PriceObservation{
		CompanyName:     company,
		BaseNightlyRate: rate,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(ts),
		ScrapeTimestamp: ts,
		Source:          models.SourceLive,
		StrategyUsed:    "direct",
	}
}

func TestInsertAndDuplicateSuppression(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	inserted, err := s.Insert(ctx, obsAt("roadsurfer", 89.50, now))
	require.NoError(t, err)
	require.True(t, inserted)

	// Same (company, price, date) later the same day is a silent no-op
	dup := obsAt("roadsurfer", 89.50, now.Add(2*time.Hour))
	inserted, err = s.Insert(ctx, dup)
	require.NoError(t, err)
	require.False(t, inserted)

	// A different price the same day is a new row
	inserted, err = s.Insert(ctx, obsAt("roadsurfer", 92.00, now))
	require.NoError(t, err)
	require.True(t, inserted)

	// Same price on another day is a new row
	inserted, err = s.Insert(ctx, obsAt("roadsurfer", 89.50, now.AddDate(0, 0, 1)))
	require.NoError(t, err)
	require.True(t, inserted)

	exists, err := s.Exists(ctx, "roadsurfer", 89.50, models.DateOf(now))
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRecentOrderingAndCompanyFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, rate := range []float64{80, 85, 90} {
		_, err := s.Insert(ctx, obsAt("indie-campers", rate, now.AddDate(0, 0, -i)))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, obsAt("outdoorsy", 120, now))
	require.NoError(t, err)

	recent, err := s.Recent(ctx, "indie-campers", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first
	require.Equal(t, 80.0, recent[0].BaseNightlyRate)
	require.Equal(t, 90.0, recent[2].BaseNightlyRate)

	all, err := s.Recent(ctx, "", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, all, 4)

	// Window excludes older rows
	narrow, err := s.Recent(ctx, "indie-campers", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, narrow, 1)
}

func TestLatestAndCompanies(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	latest, err := s.Latest(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, latest)

	_, err = s.Insert(ctx, obsAt("mcrent", 75, now.AddDate(0, 0, -2)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, obsAt("mcrent", 78, now))
	require.NoError(t, err)

	latest, err = s.Latest(ctx, "mcrent")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 78.0, latest.BaseNightlyRate)
	require.Equal(t, models.CurrencyEUR, latest.Currency)

	companies, err := s.Companies(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"mcrent"}, companies)
}

func TestAggregateWindow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, rate := range []float64{60, 80, 100} {
		_, err := s.Insert(ctx, obsAt("roadsurfer", rate, now))
		require.NoError(t, err)
	}

	agg, err := s.AggregateWindow(ctx, "roadsurfer", 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3, agg.Count)
	require.InDelta(t, 80.0, agg.Avg, 0.001)
	require.Equal(t, 60.0, agg.Min)
	require.Equal(t, 100.0, agg.Max)

	empty, err := s.AggregateWindow(ctx, "nobody", 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Count)
}

func TestCleanupRemovesOldRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.Insert(ctx, obsAt("roadsurfer", 80, now.AddDate(0, 0, -120)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, obsAt("roadsurfer", 85, now))
	require.NoError(t, err)

	removed, err := s.Cleanup(ctx, 90)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	remaining, err := s.Recent(ctx, "roadsurfer", now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, 85.0, remaining[0].BaseNightlyRate)
}

func TestFreshnessBuckets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.Insert(ctx, obsAt("fresh-co", 80, now.Add(-2*time.Hour)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, obsAt("stale-co", 80, now.AddDate(0, 0, -2)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, obsAt("old-co", 80, now.AddDate(0, 0, -10)))
	require.NoError(t, err)

	report, err := s.Freshness(ctx, []string{"fresh-co", "stale-co", "old-co", "never-co"}, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"fresh-co"}, report.Buckets[BucketFresh])
	require.Equal(t, []string{"stale-co"}, report.Buckets[BucketStale])
	require.ElementsMatch(t, []string{"old-co", "never-co"}, report.Buckets[BucketVeryStale])
	require.Equal(t, -1.0, report.AgeDays["never-co"])
}

func TestQualityScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.Insert(ctx, obsAt("fresh-co", 80, now.Add(-time.Hour)))
	require.NoError(t, err)
	est := obsAt("fresh-co", 95, now.Add(-2*time.Hour))
	est.IsEstimated = true
	est.Source = models.SourceEstimate
	_, err = s.Insert(ctx, est)
	require.NoError(t, err)

	q, err := s.Quality(ctx, []string{"fresh-co", "never-co"}, 3, QualityWeights{})
	require.NoError(t, err)
	// One of two companies fresh
	require.InDelta(t, 50.0, q.Freshness, 0.01)
	require.InDelta(t, 50.0, q.Completeness, 0.01)
	// One of two recent rows is a live extraction
	require.InDelta(t, 50.0, q.Validity, 0.01)
	require.InDelta(t, 50.0, q.Score, 0.01)

	_, err = s.Quality(ctx, nil, 3, QualityWeights{})
	require.Error(t, err)
}
