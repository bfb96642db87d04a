package cmd

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"camperwatch/config"
	"camperwatch/internal/alert"
	"camperwatch/internal/analyze"
	"camperwatch/internal/breaker"
	"camperwatch/internal/cache"
	"camperwatch/internal/httputil"
	"camperwatch/internal/logutil"
	"camperwatch/internal/models"
	"camperwatch/internal/orchestrate"
	"camperwatch/internal/scrape"
	"camperwatch/internal/stealth"
	"camperwatch/internal/store"
	"camperwatch/internal/validate"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "camperwatch",
	Short: "CamperWatch - campervan rental price intelligence CLI & MCP server",
	Long:  "A Go-based CLI tool and MCP server that tracks competitor campervan rental pricing, detects market signals and dispatches alerts.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("roster", "", "Path to the competitor roster YAML")
	rootCmd.PersistentFlags().String("db", "", "Path to the sqlite database file")
	rootCmd.PersistentFlags().String("delay-profile", "normal", "Delay profile: cautious, normal, aggressive")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
}

func initConfig() {
	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	// Override from flags
	if v, _ := rootCmd.PersistentFlags().GetString("roster"); v != "" {
		cfg.RosterPath = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("db"); v != "" {
		cfg.DatabasePath = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("delay-profile"); v != "" {
		cfg.DelayProfile = v
	}
	if v, _ := rootCmd.PersistentFlags().GetBool("respect-robots"); !v {
		cfg.RespectRobots = false
	}
}

// app bundles the wired collaborators one command invocation works with.
type app struct {
	cfg          *config.Config
	roster       []models.Competitor
	db           *sql.DB
	store        *store.Store
	cache        *cache.Cache
	analyzer     *analyze.Analyzer
	dispatcher   *alert.Dispatcher
	orchestrator *orchestrate.Orchestrator
	logger       *logutil.Logger
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// buildApp validates config, opens the store and wires the full pipeline.
// This is the only place startup is allowed to fail.
func buildApp() (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	roster, err := config.LoadRoster(cfg.RosterPath)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	logger := logutil.New()
	st := store.New(db)
	ca := cache.New(db)
	br := breaker.New(cfg.FailureThreshold, cfg.BreakerCooldown)
	validator := validate.New(cfg.Bounds, cfg.MaxDiscount, st)
	analyzer := analyze.New(st)
	dispatcher := alert.NewDispatcher(buildChannels(), cfg.AlertCooldown, logger)

	strategies, err := buildStrategies(roster)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:          cfg,
		roster:       roster,
		db:           db,
		store:        st,
		cache:        ca,
		analyzer:     analyzer,
		dispatcher:   dispatcher,
		orchestrator: orchestrate.New(cfg, roster, strategies, st, ca, br, validator, logger),
		logger:       logger,
	}, nil
}

// buildHTTPClient creates the stealth-wrapped HTTP client from config.
func buildHTTPClient() *http.Client {
	fpPool := stealth.NewFingerprintPool()
	delay := stealth.NewHumanDelay(stealth.DelayProfile(cfg.DelayProfile))
	limiter := rate.NewLimiter(rate.Every(cfg.RateLimitDelay), 1)

	robots := stealth.NewRobotsChecker(httputil.NewClient(nil), cfg.RespectRobots)

	return httputil.NewClient(&stealth.Transport{
		Robots:      robots,
		Fingerprint: fpPool,
		Delay:       delay,
		RateLimiter: limiter,
	})
}

// buildStrategies instantiates every strategy the roster references.
func buildStrategies(roster []models.Competitor) (map[string]scrape.Strategy, error) {
	deps := scrape.Deps{
		Client:           buildHTTPClient(),
		Delay:            stealth.NewHumanDelay(stealth.DelayProfile(cfg.DelayProfile)),
		ChallengeTimeout: cfg.ChallengeTimeout,
		ScreenshotDir:    cfg.ScreenshotDir,
		BrowserBin:       os.Getenv("BROWSER_BIN"),
	}

	strategies := make(map[string]scrape.Strategy)
	for _, comp := range roster {
		for _, name := range comp.Strategies {
			if _, ok := strategies[name]; ok {
				continue
			}
			strat, err := scrape.New(name, deps)
			if err != nil {
				return nil, fmt.Errorf("competitor %s: %w", comp.Name, err)
			}
			strategies[name] = strat
		}
	}
	return strategies, nil
}

func buildChannels() []alert.Channel {
	return []alert.Channel{
		alert.NewEmailChannel(cfg.EnableEmailAlerts, cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.AlertRecipients),
		alert.NewChatChannel(cfg.EnableChatAlerts, cfg.WebhookURL, cfg.WebhookToken),
		alert.NewSMSChannel(cfg.EnableSMSAlerts, cfg.SMSAccountSID, cfg.SMSAuthToken,
			cfg.SMSFrom, cfg.SMSRecipients, cfg.SMSAPIBaseURL),
	}
}
