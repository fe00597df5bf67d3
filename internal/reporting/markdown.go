package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Signal Trade Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Investment (%s) | %s |\n", r.Currency, r.InitialInvestment.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Total Earnings (%s) | %s |\n", r.Currency, r.TotalEarnings.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| ROI | %s%% |\n", r.ROI.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Final Balance (%s) | %s |\n", r.Currency, r.FinalBalance.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Worst Monthly Drawdown (%s) | %s |\n", r.Currency, r.MaxDrawdown.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Trades | %s |\n", formatCount(r.TradeCount)))
	sb.WriteString(fmt.Sprintf("| Unknown Side Trades | %s |\n", formatCount(r.UnknownSideCount)))
	sb.WriteString("\n")

	// Monthly table
	sb.WriteString("## Monthly Results\n\n")
	if len(r.Months) == 0 {
		sb.WriteString("No trades.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("| Month | Trades | Earnings (%s) | Max Drawdown (%s) |\n", r.Currency, r.Currency))
		sb.WriteString("|-------|--------|----------|--------------|\n")
		for _, m := range r.Months {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
				m.Month, m.Trades, m.Earnings.StringFixed(2), m.MaxDrawdown.StringFixed(2)))
		}
		sb.WriteString(fmt.Sprintf("| Total | %d | %s | |\n", r.TradeCount, r.TotalEarnings.StringFixed(2)))
		sb.WriteString("\n")
	}

	// Data quality
	if len(r.RejectedTrades) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, msg := range r.RejectedTrades {
			sb.WriteString(fmt.Sprintf("- %s\n", msg))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
