package validate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camperwatch/config"
	"camperwatch/internal/extract"
	"camperwatch/internal/models"
	"camperwatch/internal/store"
)

func testValidator(t *testing.T) (*Validator, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)

	bounds := map[models.Currency]config.PriceBounds{
		models.CurrencyEUR: {Min: 20, Max: 500},
		models.CurrencyUSD: {Min: 50, Max: 1000},
	}
	return New(bounds, 70, st), st
}

var testComp = models.Competitor{
	Name:     "roadsurfer",
	Currency: models.CurrencyEUR,
}

func TestBatchAcceptsPlausibleCandidates(t *testing.T) {
	v, _ := testValidator(t)
	now := time.Now()

	res, err := v.Batch(context.Background(), testComp, []extract.Candidate{
		{Value: 89.50, SourceKind: extract.KindJSON, RawSnippet: "price"},
		{Value: 120, CurrencyHint: models.CurrencyEUR, SourceKind: extract.KindDOM},
	}, "direct", "munich", now)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	require.Empty(t, res.Rejected)

	obs := res.Accepted[0]
	require.Equal(t, "roadsurfer", obs.CompanyName)
	require.Equal(t, models.DateOf(now), obs.ScrapeDate)
	require.Equal(t, "munich", obs.Location)
	require.Equal(t, "direct", obs.StrategyUsed)
	require.Equal(t, models.SourceLive, obs.Source)
}

func TestBatchRejectsOutOfBounds(t *testing.T) {
	v, _ := testValidator(t)

	res, err := v.Batch(context.Background(), testComp, []extract.Candidate{
		{Value: 5},   // below EUR minimum
		{Value: 900}, // above EUR maximum
		{Value: 100}, // fine
	}, "direct", "", time.Now())
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	require.Len(t, res.Rejected, 2)
	require.Contains(t, res.Rejected[0].Reason, "outside")
}

func TestBatchRejectsCurrencyMismatch(t *testing.T) {
	v, _ := testValidator(t)

	res, err := v.Batch(context.Background(), testComp, []extract.Candidate{
		{Value: 100, CurrencyHint: models.CurrencyUSD},
	}, "direct", "", time.Now())
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Contains(t, res.Rejected[0].Reason, "currency mismatch")
}

func TestBatchRejectsStoredDuplicate(t *testing.T) {
	v, st := testValidator(t)
	ctx := context.Background()
	now := time.Now()

	_, err := st.Insert(ctx, models.PriceObservation{
		CompanyName:     "roadsurfer",
		BaseNightlyRate: 89.50,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(now),
		ScrapeTimestamp: now,
	})
	require.NoError(t, err)

	res, err := v.Batch(ctx, testComp, []extract.Candidate{{Value: 89.50}}, "direct", "", now)
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Contains(t, res.Rejected[0].Reason, "duplicate")
}

func TestBatchFlagsStatisticalOutlier(t *testing.T) {
	v, st := testValidator(t)
	ctx := context.Background()
	now := time.Now()

	for i, rate := range []float64{90, 100, 110} {
		_, err := st.Insert(ctx, models.PriceObservation{
			CompanyName:     "roadsurfer",
			BaseNightlyRate: rate,
			Currency:        models.CurrencyEUR,
			ScrapeDate:      models.DateOf(now.AddDate(0, 0, -i-1)),
			ScrapeTimestamp: now.AddDate(0, 0, -i-1),
		})
		require.NoError(t, err)
	}

	res, err := v.Batch(ctx, testComp, []extract.Candidate{
		{Value: 400}, // far from the recent mean, still inside bounds
		{Value: 95},  // ordinary
	}, "direct", "", now)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	require.True(t, strings.Contains(res.Accepted[0].Notes, "outlier"))
	require.False(t, strings.Contains(res.Accepted[1].Notes, "outlier"))
}

func TestBatchRejectsZeroValue(t *testing.T) {
	v, _ := testValidator(t)

	res, err := v.Batch(context.Background(), testComp, []extract.Candidate{{Value: 0}}, "direct", "", time.Now())
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Contains(t, res.Rejected[0].Reason, "missing required fields")
}
