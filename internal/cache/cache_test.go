package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camperwatch/internal/models"
	"camperwatch/internal/store"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func sampleObs(rate float64) []models.PriceObservation {
	now := time.Now()
	return []models.PriceObservation{{
		CompanyName:     "roadsurfer",
		BaseNightlyRate: rate,
		Currency:        models.CurrencyEUR,
		ScrapeDate:      models.DateOf(now),
		ScrapeTimestamp: now,
		Source:          models.SourceLive,
	}}
}

func TestPutAndGetIfFresh(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	got, err := c.GetIfFresh(ctx, "roadsurfer", time.Hour)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(89.50)))

	got, err = c.GetIfFresh(ctx, "roadsurfer", time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 89.50, got[0].BaseNightlyRate)
	require.Equal(t, models.CurrencyEUR, got[0].Currency)
}

func TestPutOverwritesPreviousEntry(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(80)))
	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(95)))

	got, err := c.GetIfFresh(ctx, "roadsurfer", time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 95.0, got[0].BaseNightlyRate)
}

func TestGetIfFreshHonorsTTL(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(89.50)))

	// A zero TTL means everything is already expired
	got, err := c.GetIfFresh(ctx, "roadsurfer", 0)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCacheIsPerCompany(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(89.50)))

	got, err := c.GetIfFresh(ctx, "indie-campers", time.Hour)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCleanup(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "roadsurfer", sampleObs(89.50)))

	// Entries written just now survive any positive max age
	removed, err := c.Cleanup(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 0, removed)

	// A negative max age puts the cutoff in the future and sweeps everything
	removed, err = c.Cleanup(ctx, -1)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	got, err := c.GetIfFresh(ctx, "roadsurfer", time.Hour)
	require.NoError(t, err)
	require.Nil(t, got)
}
