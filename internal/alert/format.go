package alert

import (
	"fmt"
	"strings"

	"camperwatch/internal/models"
)

const chatInlineLimit = 5

// formatEmail renders the full-detail email body.
func formatEmail(alerts []models.Alert) (subject, body string) {
	high := 0
	for _, a := range alerts {
		if a.Severity == models.SeverityHigh {
			high++
		}
	}
	subject = fmt.Sprintf("camperwatch: %d market alert(s)", len(alerts))
	if high > 0 {
		subject = fmt.Sprintf("camperwatch: %d market alert(s), %d HIGH", len(alerts), high)
	}

	var b strings.Builder
	for i, a := range alerts {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, a.Severity, a.Message)
		if a.Competitor != "" {
			fmt.Fprintf(&b, "   Competitor: %s\n", a.Competitor)
		}
		if a.Action != "" {
			fmt.Fprintf(&b, "   Action: %s\n", a.Action)
		}
		if a.Impact != "" {
			fmt.Fprintf(&b, "   Impact: %s\n", a.Impact)
		}
		b.WriteString("\n")
	}
	return subject, b.String()
}

// formatChat renders the webhook payload text, truncated after the first 5
// items with a "+N more" footer.
func formatChat(alerts []models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d market alert(s)*\n", len(alerts))
	shown := alerts
	if len(shown) > chatInlineLimit {
		shown = shown[:chatInlineLimit]
	}
	for _, a := range shown {
		fmt.Fprintf(&b, "• [%s] %s", a.Severity, a.Message)
		if a.Competitor != "" {
			fmt.Fprintf(&b, " (%s)", a.Competitor)
		}
		b.WriteString("\n")
	}
	if n := len(alerts) - chatInlineLimit; n > 0 {
		fmt.Fprintf(&b, "+%d more\n", n)
	}
	return b.String()
}

// formatSMS renders one alert for telephony delivery: message capped at 100
// characters, action at 50.
func formatSMS(a models.Alert) string {
	msg := truncate(a.Message, 100)
	if a.Action == "" {
		return fmt.Sprintf("[%s] %s", a.Severity, msg)
	}
	return fmt.Sprintf("[%s] %s | %s", a.Severity, msg, truncate(a.Action, 50))
}

func formatSummaryText(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily market summary %s\n", s.Date)
	fmt.Fprintf(&b, "Companies scraped: %d\n", s.CompaniesScraped)
	fmt.Fprintf(&b, "Observations stored: %d\n", s.ObservationsStored)
	fmt.Fprintf(&b, "Fallbacks used: %d\n", s.FallbacksUsed)
	if s.MarketAvg > 0 {
		fmt.Fprintf(&b, "Market average nightly rate: %.2f\n", s.MarketAvg)
	}
	for _, h := range s.Highlights {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
