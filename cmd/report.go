package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"camperwatch/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analytics reports over stored observations",
}

var trendsCmd = &cobra.Command{
	Use:   "trends [competitor]",
	Short: "Trend direction, velocity and patterns per competitor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrends,
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies [competitor]",
	Short: "Z-score outliers among recent observations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnomalies,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast [competitor]",
	Short: "Moving-average price forecast",
	Args:  cobra.ExactArgs(1),
	RunE:  runForecast,
}

var seasonalCmd = &cobra.Command{
	Use:   "seasonal [competitor]",
	Short: "Average price by weekday and month",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSeasonal,
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Per-competitor market position against the roster average",
	RunE:  runMarket,
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Freshness, completeness and validity of the stored data",
	RunE:  runQuality,
}

func init() {
	trendsCmd.Flags().Int("days", 30, "Lookback window in days")
	trendsCmd.Flags().String("format", "table", "Output format: json, table")
	forecastCmd.Flags().Int("days-ahead", 7, "Days to project")
	marketCmd.Flags().Int("days", 7, "Lookback window in days")
	marketCmd.Flags().String("format", "table", "Output format: json, table")

	reportCmd.AddCommand(trendsCmd, anomaliesCmd, forecastCmd, seasonalCmd, marketCmd, qualityCmd)
	rootCmd.AddCommand(reportCmd)
}

func optionalCompany(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}

func runTrends(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	days, _ := cmd.Flags().GetInt("days")
	format, _ := cmd.Flags().GetString("format")

	trends, err := app.analyzer.Trends(cmd.Context(), optionalCompany(args), days)
	if err != nil {
		return err
	}
	if format == "table" {
		printTrendsTable(trends)
		return nil
	}
	return printJSON(trends)
}

func runAnomalies(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	anomalies, err := app.analyzer.Anomalies(cmd.Context(), optionalCompany(args))
	if err != nil {
		return err
	}
	return printJSON(anomalies)
}

func runForecast(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	daysAhead, _ := cmd.Flags().GetInt("days-ahead")
	forecast, err := app.analyzer.Forecast(cmd.Context(), args[0], daysAhead)
	if err != nil {
		return err
	}
	return printJSON(forecast)
}

func runSeasonal(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	seasonal, err := app.analyzer.Seasonal(cmd.Context(), optionalCompany(args))
	if err != nil {
		return err
	}
	return printJSON(seasonal)
}

func runMarket(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	days, _ := cmd.Flags().GetInt("days")
	format, _ := cmd.Flags().GetString("format")

	positions, err := app.analyzer.CompareMarket(cmd.Context(), days)
	if err != nil {
		return err
	}
	if format == "table" {
		printMarketTable(positions)
		return nil
	}
	return printJSON(positions)
}

func runQuality(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	names := make([]string, 0, len(app.roster))
	for _, c := range app.roster {
		names = append(names, c.Name)
	}
	quality, err := app.store.Quality(cmd.Context(), names, app.cfg.StalenessDays, store.QualityWeights{})
	if err != nil {
		return err
	}
	return printJSON(quality)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
