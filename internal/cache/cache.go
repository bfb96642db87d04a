package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"camperwatch/internal/models"
)

// Cache persists the last successful scrape per competitor, used as fallback
// when live scraping fails. Entries survive process restarts.
type Cache struct {
	db *sql.DB
}

func New(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Put stores the validated observations for a company, replacing any
// previous entry (last-write-wins).
func (c *Cache) Put(ctx context.Context, company string, obs []models.PriceObservation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("cache: marshal payload for %s: %w", company, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO fallback_cache (company_name, payload, created_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (company_name) DO UPDATE SET payload = excluded.payload, created_ts = excluded.created_ts`,
		company, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", company, err)
	}
	return nil
}

// GetIfFresh returns the cached payload for a company when it is younger
// than ttl, or nil otherwise.
func (c *Cache) GetIfFresh(ctx context.Context, company string, ttl time.Duration) ([]models.PriceObservation, error) {
	var (
		payload string
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, created_ts FROM fallback_cache WHERE company_name = ?`, company,
	).Scan(&payload, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", company, err)
	}

	if time.Since(time.Unix(created, 0)) >= ttl {
		return nil, nil
	}

	var obs []models.PriceObservation
	if err := json.Unmarshal([]byte(payload), &obs); err != nil {
		return nil, fmt.Errorf("cache: decode payload for %s: %w", company, err)
	}
	return obs, nil
}

// Cleanup removes entries older than maxAgeDays and returns how many were
// deleted.
func (c *Cache) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM fallback_cache WHERE created_ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup rows affected: %w", err)
	}
	return n, nil
}
