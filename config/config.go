package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"camperwatch/internal/models"
)

// PriceBounds is the plausible nightly-rate range for one currency.
type PriceBounds struct {
	Min float64
	Max float64
}

// Config holds all application configuration. It is read once at startup and
// treated as immutable afterwards.
type Config struct {
	// Validation
	Bounds      map[models.Currency]PriceBounds
	MaxDiscount float64

	// Store
	DatabasePath  string
	RetentionDays int
	StalenessDays int

	// Roster
	RosterPath string

	// Orchestrator
	MaxRetries            int
	RetryDelay            time.Duration
	ScrapingTimeout       time.Duration
	MaxConcurrentScrapers int
	RateLimitDelay        time.Duration

	// Circuit breaker
	FailureThreshold int
	BreakerCooldown  time.Duration

	// Resilience cache
	CacheTTL        time.Duration
	CacheMaxAgeDays int

	// Browser / stealth
	ChallengeTimeout time.Duration
	ScreenshotDir    string
	RespectRobots    bool
	DelayProfile     string // "cautious", "normal", "aggressive"

	// Alerting
	EnableEmailAlerts bool
	EnableChatAlerts  bool
	EnableSMSAlerts   bool
	AlertCooldown     time.Duration
	AlertRecipients   []string
	SMSRecipients     []string
	WebhookURL        string
	WebhookToken      string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	SMSAccountSID     string
	SMSAuthToken      string
	SMSFrom           string
	SMSAPIBaseURL     string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bounds: map[models.Currency]PriceBounds{
			models.CurrencyEUR: {Min: 20, Max: 500},
			models.CurrencyUSD: {Min: 50, Max: 1000},
		},
		MaxDiscount:           70,
		DatabasePath:          "camperwatch.db",
		RetentionDays:         90,
		StalenessDays:         3,
		RosterPath:            "competitors.yaml",
		MaxRetries:            3,
		RetryDelay:            2 * time.Second,
		ScrapingTimeout:       45 * time.Second,
		MaxConcurrentScrapers: 3,
		RateLimitDelay:        2 * time.Second,
		FailureThreshold:      5,
		BreakerCooldown:       300 * time.Second,
		CacheTTL:              24 * time.Hour,
		CacheMaxAgeDays:       7,
		ChallengeTimeout:      60 * time.Second,
		ScreenshotDir:         "screenshots",
		RespectRobots:         true,
		DelayProfile:          "normal",
		AlertCooldown:         time.Hour,
		SMTPPort:              587,
		SMSAPIBaseURL:         "https://api.twilio.com",
	}
}

// LoadFromEnv loads .env (if present) then overrides config from environment
// variables.
func (c *Config) LoadFromEnv() {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	envFloat("MIN_PRICE_EUR", func(f float64) { c.setBound(models.CurrencyEUR, f, 0) })
	envFloat("MAX_PRICE_EUR", func(f float64) { c.setBound(models.CurrencyEUR, 0, f) })
	envFloat("MIN_PRICE_USD", func(f float64) { c.setBound(models.CurrencyUSD, f, 0) })
	envFloat("MAX_PRICE_USD", func(f float64) { c.setBound(models.CurrencyUSD, 0, f) })
	envFloat("MAX_DISCOUNT", func(f float64) { c.MaxDiscount = f })

	envString("DATABASE_PATH", &c.DatabasePath)
	envInt("RETENTION_DAYS", &c.RetentionDays)
	envInt("STALENESS_DAYS", &c.StalenessDays)
	envString("ROSTER_PATH", &c.RosterPath)

	envInt("MAX_RETRIES", &c.MaxRetries)
	envDurationMs("RETRY_DELAY_MS", &c.RetryDelay)
	envDurationMs("SCRAPING_TIMEOUT_MS", &c.ScrapingTimeout)
	envInt("MAX_CONCURRENT_SCRAPERS", &c.MaxConcurrentScrapers)
	envDurationMs("RATE_LIMIT_DELAY_MS", &c.RateLimitDelay)

	envInt("FAILURE_THRESHOLD", &c.FailureThreshold)
	envDurationS("BREAKER_COOLDOWN_S", &c.BreakerCooldown)

	envDurationS("CACHE_TTL_S", &c.CacheTTL)
	envInt("CACHE_MAX_AGE_DAYS", &c.CacheMaxAgeDays)

	envDurationS("CHALLENGE_TIMEOUT_S", &c.ChallengeTimeout)
	envString("SCREENSHOT_DIR", &c.ScreenshotDir)
	if v := os.Getenv("RESPECT_ROBOTS"); v == "false" {
		c.RespectRobots = false
	}
	envString("DELAY_PROFILE", &c.DelayProfile)

	envBool("ENABLE_EMAIL_ALERTS", &c.EnableEmailAlerts)
	envBool("ENABLE_CHAT_ALERTS", &c.EnableChatAlerts)
	envBool("ENABLE_SMS_ALERTS", &c.EnableSMSAlerts)
	envDurationS("ALERT_COOLDOWN_S", &c.AlertCooldown)
	envList("ALERT_RECIPIENTS", &c.AlertRecipients)
	envList("SMS_RECIPIENTS", &c.SMSRecipients)
	envString("WEBHOOK_URL", &c.WebhookURL)
	envString("WEBHOOK_TOKEN", &c.WebhookToken)
	envString("SMTP_HOST", &c.SMTPHost)
	envInt("SMTP_PORT", &c.SMTPPort)
	envString("SMTP_USER", &c.SMTPUser)
	envString("SMTP_PASS", &c.SMTPPass)
	envString("SMTP_FROM", &c.SMTPFrom)
	envString("SMS_ACCOUNT_SID", &c.SMSAccountSID)
	envString("SMS_AUTH_TOKEN", &c.SMSAuthToken)
	envString("SMS_FROM", &c.SMSFrom)
	envString("SMS_API_BASE_URL", &c.SMSAPIBaseURL)
}

// Validate checks bounds sanity and channel credentials. This is the only
// surface of the program allowed to fail fast.
func (c *Config) Validate() error {
	for cur, b := range c.Bounds {
		if b.Min <= 0 || b.Max <= b.Min {
			return fmt.Errorf("config: invalid price bounds for %s: min=%.2f max=%.2f", cur, b.Min, b.Max)
		}
	}
	if c.MaxDiscount < 0 || c.MaxDiscount > 100 {
		return fmt.Errorf("config: MAX_DISCOUNT must be within [0,100], got %.1f", c.MaxDiscount)
	}
	if c.MaxConcurrentScrapers < 1 || c.MaxConcurrentScrapers > 10 {
		return fmt.Errorf("config: MAX_CONCURRENT_SCRAPERS must be within [1,10], got %d", c.MaxConcurrentScrapers)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: MAX_RETRIES must be >= 1, got %d", c.MaxRetries)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("config: RETENTION_DAYS must be >= 1, got %d", c.RetentionDays)
	}
	if c.EnableEmailAlerts {
		if c.SMTPHost == "" || c.SMTPUser == "" || c.SMTPPass == "" || c.SMTPFrom == "" {
			return fmt.Errorf("config: email alerts enabled but SMTP credentials are incomplete")
		}
		if len(c.AlertRecipients) == 0 {
			return fmt.Errorf("config: email alerts enabled but ALERT_RECIPIENTS is empty")
		}
	}
	if c.EnableChatAlerts && c.WebhookURL == "" {
		return fmt.Errorf("config: chat alerts enabled but WEBHOOK_URL is not set")
	}
	if c.EnableSMSAlerts {
		if c.SMSAccountSID == "" || c.SMSAuthToken == "" || c.SMSFrom == "" {
			return fmt.Errorf("config: sms alerts enabled but telephony credentials are incomplete")
		}
		if len(c.SMSRecipients) == 0 {
			return fmt.Errorf("config: sms alerts enabled but SMS_RECIPIENTS is empty")
		}
	}
	return nil
}

func (c *Config) setBound(cur models.Currency, min, max float64) {
	b := c.Bounds[cur]
	if min > 0 {
		b.Min = min
	}
	if max > 0 {
		b.Max = max
	}
	c.Bounds[cur] = b
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, set func(float64)) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			set(f)
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDurationMs(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

func envDurationS(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func envList(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
