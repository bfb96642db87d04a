package models

import "time"

// Currency is the ISO code a competitor lists prices in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// Source records where an observation's value came from.
type Source string

const (
	SourceLive          Source = "live"
	SourceCacheFallback Source = "cache_fallback"
	SourceStoreFallback Source = "store_fallback"
	SourceEstimate      Source = "estimate"
)

// FormStep is one declarative interaction against an on-page booking form.
// Value supports the placeholders {location}, {checkin} and {checkout}.
type FormStep struct {
	Locate string `yaml:"locate" json:"locate"`
	Action string `yaml:"action" json:"action"` // click | type | select | submit
	Value  string `yaml:"value,omitempty" json:"value,omitempty"`
	WaitMs int    `yaml:"wait_ms,omitempty" json:"wait_ms,omitempty"`
}

// Competitor is one vendor from the roster. Loaded at startup, immutable after.
type Competitor struct {
	Name            string     `yaml:"name" json:"name"`
	BaseURL         string     `yaml:"base_url" json:"base_url"`
	SearchURL       string     `yaml:"search_url,omitempty" json:"search_url,omitempty"`
	Currency        Currency   `yaml:"currency" json:"currency"`
	Country         string     `yaml:"country" json:"country"`
	Strategies      []string   `yaml:"strategies" json:"strategies"`
	SearchLocations []string   `yaml:"search_locations" json:"search_locations"`
	FleetEstimate   int        `yaml:"fleet_estimate,omitempty" json:"fleet_estimate,omitempty"`
	Priority        int        `yaml:"priority" json:"priority"`
	APIPatterns     []string   `yaml:"api_patterns,omitempty" json:"api_patterns,omitempty"`
	FormSteps       []FormStep `yaml:"form_steps,omitempty" json:"form_steps,omitempty"`
}

// PriceObservation is one validated per-night price record.
type PriceObservation struct {
	ID                 int64     `json:"id,omitempty"`
	CompanyName        string    `json:"company_name"`
	BaseNightlyRate    float64   `json:"base_nightly_rate"`
	Currency           Currency  `json:"currency"`
	ScrapeDate         string    `json:"scrape_date"` // YYYY-MM-DD
	ScrapeTimestamp    time.Time `json:"scrape_timestamp"`
	VehicleType        string    `json:"vehicle_type,omitempty"`
	Location           string    `json:"location,omitempty"`
	DiscountPercentage float64   `json:"discount_percentage,omitempty"`
	IsEstimated        bool      `json:"is_estimated"`
	StrategyUsed       string    `json:"strategy_used,omitempty"`
	Source             Source    `json:"source"`
	Notes              string    `json:"notes,omitempty"`
}

// DateOf formats t as a store scrape_date key.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// Severity of an alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// SignalType classifies what triggered an alert. Together with the competitor
// name it forms the dispatcher's cooldown key.
type SignalType string

const (
	SignalPriceDrop     SignalType = "price_drop"
	SignalPriceSpike    SignalType = "price_spike"
	SignalAnomaly       SignalType = "anomaly"
	SignalNewFleet      SignalType = "new_fleet"
	SignalScrapeFailure SignalType = "scrape_failure"
)

// Alert is a single dispatchable event.
type Alert struct {
	ID         string     `json:"id"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	Action     string     `json:"action,omitempty"`
	Impact     string     `json:"impact,omitempty"`
	Competitor string     `json:"competitor,omitempty"`
	Signal     SignalType `json:"signal_type,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
