package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"camperwatch/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name      TEXT    NOT NULL,
	base_nightly_rate REAL    NOT NULL,
	currency          TEXT    NOT NULL,
	scrape_date       TEXT    NOT NULL,
	scrape_ts         INTEGER NOT NULL,
	vehicle_type      TEXT    NOT NULL DEFAULT '',
	location          TEXT    NOT NULL DEFAULT '',
	discount_pct      REAL    NOT NULL DEFAULT 0,
	is_estimated      INTEGER NOT NULL DEFAULT 0,
	strategy_used     TEXT    NOT NULL DEFAULT '',
	source            TEXT    NOT NULL DEFAULT 'live',
	notes             TEXT    NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_obs_dedupe
	ON price_observations(company_name, base_nightly_rate, scrape_date);
CREATE INDEX IF NOT EXISTS idx_obs_company_ts ON price_observations(company_name, scrape_ts);
CREATE INDEX IF NOT EXISTS idx_obs_ts ON price_observations(scrape_ts);

CREATE TABLE IF NOT EXISTS fallback_cache (
	company_name TEXT PRIMARY KEY,
	payload      TEXT    NOT NULL,
	created_ts   INTEGER NOT NULL
);
`

// Open opens (or creates) the sqlite database file and applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// sqlite allows a single writer; serialize access through one connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

// Store is the persistent table of normalized price observations; the single
// source of truth for analytics, alerts and external collaborators.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists one observation. A duplicate of an existing
// (company, base_price, scrape_date) row is a silent no-op; the return value
// reports whether a row was actually written.
func (s *Store) Insert(ctx context.Context, o models.PriceObservation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO price_observations
			(company_name, base_nightly_rate, currency, scrape_date, scrape_ts,
			 vehicle_type, location, discount_pct, is_estimated, strategy_used, source, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_name, base_nightly_rate, scrape_date) DO NOTHING`,
		o.CompanyName, o.BaseNightlyRate, string(o.Currency), o.ScrapeDate, o.ScrapeTimestamp.Unix(),
		o.VehicleType, o.Location, o.DiscountPercentage, boolInt(o.IsEstimated), o.StrategyUsed,
		string(o.Source), o.Notes,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert rows affected: %w", err)
	}
	return n > 0, nil
}

// Recent returns observations newer than since, newest first. An empty
// company selects the whole roster.
func (s *Store) Recent(ctx context.Context, company string, since time.Time) ([]models.PriceObservation, error) {
	query := `
		SELECT id, company_name, base_nightly_rate, currency, scrape_date, scrape_ts,
		       vehicle_type, location, discount_pct, is_estimated, strategy_used, source, notes
		FROM price_observations
		WHERE scrape_ts >= ?`
	args := []any{since.Unix()}
	if company != "" {
		query += ` AND company_name = ?`
		args = append(args, company)
	}
	query += ` ORDER BY scrape_ts DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Latest returns the most recent observation for a company, or nil when the
// company has never been observed.
func (s *Store) Latest(ctx context.Context, company string) (*models.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_name, base_nightly_rate, currency, scrape_date, scrape_ts,
		       vehicle_type, location, discount_pct, is_estimated, strategy_used, source, notes
		FROM price_observations
		WHERE company_name = ?
		ORDER BY scrape_ts DESC
		LIMIT 1`, company)
	if err != nil {
		return nil, fmt.Errorf("store: latest: %w", err)
	}
	defer rows.Close()
	obs, err := scanObservations(rows)
	if err != nil || len(obs) == 0 {
		return nil, err
	}
	return &obs[0], nil
}

// Companies returns the distinct company names present in the store.
func (s *Store) Companies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT company_name FROM price_observations ORDER BY company_name`)
	if err != nil {
		return nil, fmt.Errorf("store: companies: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: companies scan: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Exists reports whether a row with the duplicate-suppression key
// (company, base_price, scrape_date) is already stored.
func (s *Store) Exists(ctx context.Context, company string, basePrice float64, scrapeDate string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM price_observations
		WHERE company_name = ? AND base_nightly_rate = ? AND scrape_date = ?`,
		company, basePrice, scrapeDate).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return n > 0, nil
}

// Aggregate holds avg/min/max/count over a window.
type Aggregate struct {
	Company string  `json:"company,omitempty"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// AggregateWindow computes price statistics over the trailing window. An
// empty company aggregates across the roster.
func (s *Store) AggregateWindow(ctx context.Context, company string, window time.Duration) (Aggregate, error) {
	since := time.Now().Add(-window).Unix()
	query := `
		SELECT COALESCE(AVG(base_nightly_rate), 0), COALESCE(MIN(base_nightly_rate), 0),
		       COALESCE(MAX(base_nightly_rate), 0), COUNT(*)
		FROM price_observations
		WHERE scrape_ts >= ?`
	args := []any{since}
	if company != "" {
		query += ` AND company_name = ?`
		args = append(args, company)
	}

	var agg Aggregate
	agg.Company = company
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&agg.Avg, &agg.Min, &agg.Max, &agg.Count)
	if err != nil {
		return Aggregate{}, fmt.Errorf("store: aggregate: %w", err)
	}
	return agg, nil
}

// Cleanup bulk-deletes observations older than the retention threshold and
// returns the number of removed rows.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_observations WHERE scrape_ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: cleanup rows affected: %w", err)
	}
	return n, nil
}

func scanObservations(rows *sql.Rows) ([]models.PriceObservation, error) {
	var out []models.PriceObservation
	for rows.Next() {
		var (
			o           models.PriceObservation
			ts          int64
			isEstimated int
			currency    string
			source      string
		)
		if err := rows.Scan(&o.ID, &o.CompanyName, &o.BaseNightlyRate, &currency, &o.ScrapeDate, &ts,
			&o.VehicleType, &o.Location, &o.DiscountPercentage, &isEstimated, &o.StrategyUsed,
			&source, &o.Notes); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		o.Currency = models.Currency(currency)
		o.Source = models.Source(source)
		o.ScrapeTimestamp = time.Unix(ts, 0)
		o.IsEstimated = isEstimated != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
