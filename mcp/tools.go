package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"camperwatch/internal/store"
)

func registerTools(s *server.MCPServer, deps Deps) {
	// recent_prices
	recentTool := mcp.NewTool("recent_prices",
		mcp.WithDescription("List recent price observations, newest first"),
		mcp.WithString("company",
			mcp.Description("Competitor name (default: all)"),
		),
		mcp.WithNumber("days",
			mcp.Description("Lookback window in days (default: 7)"),
		),
	)
	s.AddTool(recentTool, handleRecentPrices(deps))

	// market_overview
	marketTool := mcp.NewTool("market_overview",
		mcp.WithDescription("Per-competitor average price, percentile and gap to the market average"),
		mcp.WithNumber("days",
			mcp.Description("Lookback window in days (default: 7)"),
		),
	)
	s.AddTool(marketTool, handleMarketOverview(deps))

	// price_trends
	trendsTool := mcp.NewTool("price_trends",
		mcp.WithDescription("Trend direction, velocity, volatility and detected patterns per competitor"),
		mcp.WithString("company",
			mcp.Description("Competitor name (default: all)"),
		),
		mcp.WithNumber("days",
			mcp.Description("Lookback window in days (default: 30)"),
		),
	)
	s.AddTool(trendsTool, handlePriceTrends(deps))

	// detect_anomalies
	anomalyTool := mcp.NewTool("detect_anomalies",
		mcp.WithDescription("Z-score outliers among recent observations"),
		mcp.WithString("company",
			mcp.Description("Competitor name (default: all)"),
		),
	)
	s.AddTool(anomalyTool, handleDetectAnomalies(deps))

	// forecast_prices
	forecastTool := mcp.NewTool("forecast_prices",
		mcp.WithDescription("Moving-average price forecast for one competitor"),
		mcp.WithString("company",
			mcp.Required(),
			mcp.Description("Competitor name"),
		),
		mcp.WithNumber("days_ahead",
			mcp.Description("Days to project (default: 7)"),
		),
	)
	s.AddTool(forecastTool, handleForecastPrices(deps))

	// seasonal_patterns
	seasonalTool := mcp.NewTool("seasonal_patterns",
		mcp.WithDescription("Average price by weekday and month, with peaks"),
		mcp.WithString("company",
			mcp.Description("Competitor name (default: all)"),
		),
	)
	s.AddTool(seasonalTool, handleSeasonalPatterns(deps))

	// data_quality
	qualityTool := mcp.NewTool("data_quality",
		mcp.WithDescription("Freshness, completeness and validity score of the stored data"),
	)
	s.AddTool(qualityTool, handleDataQuality(deps))
}

func handleRecentPrices(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company := request.GetString("company", "")
		days := request.GetInt("days", 7)

		obs, err := deps.Store.Recent(ctx, company, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
		}
		return jsonResult(obs)
	}
}

func handleMarketOverview(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := request.GetInt("days", 7)

		positions, err := deps.Analyzer.CompareMarket(ctx, days)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}
		return jsonResult(positions)
	}
}

func handlePriceTrends(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company := request.GetString("company", "")
		days := request.GetInt("days", 30)

		trends, err := deps.Analyzer.Trends(ctx, company, days)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}
		return jsonResult(trends)
	}
}

func handleDetectAnomalies(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company := request.GetString("company", "")

		anomalies, err := deps.Analyzer.Anomalies(ctx, company)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}
		return jsonResult(anomalies)
	}
}

func handleForecastPrices(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company := request.GetString("company", "")
		if company == "" {
			return mcp.NewToolResultError("company is required"), nil
		}
		daysAhead := request.GetInt("days_ahead", 7)

		forecast, err := deps.Analyzer.Forecast(ctx, company, daysAhead)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}
		return jsonResult(forecast)
	}
}

func handleSeasonalPatterns(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company := request.GetString("company", "")

		seasonal, err := deps.Analyzer.Seasonal(ctx, company)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}
		return jsonResult(seasonal)
	}
}

func handleDataQuality(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		quality, err := deps.Store.Quality(ctx, deps.Roster, deps.StalenessDays, store.QualityWeights{})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
		}
		return jsonResult(quality)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}
