package reporting

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderCSV renders the monthly table: one row per month in ascending order,
// then a Total row with an empty drawdown cell. Amounts are written in their
// exact decimal form, so the Total equals the sum of the month rows.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	rows := [][]string{{
		"Month",
		fmt.Sprintf("Earnings (%s)", r.Currency),
		fmt.Sprintf("Max Drawdown (%s)", r.Currency),
	}}
	for _, m := range r.Months {
		rows = append(rows, []string{m.Month, m.Earnings.String(), m.MaxDrawdown.String()})
	}
	rows = append(rows, []string{"Total", r.TotalEarnings.String(), ""})

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write monthly csv: %w", err)
	}
	return sb.String(), nil
}

// RenderTradesCSV renders every accepted trade with its PnL breakdown.
func RenderTradesCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	rows := [][]string{{
		"trade_id", "side", "entry_time", "entry_price", "exit_time", "exit_price",
		"month", "quantity", "raw_pnl", "fee", "net_pnl", "balance_after",
	}}
	for _, p := range r.Trades {
		rows = append(rows, []string{
			p.Trade.TradeID,
			p.Trade.Side.String(),
			time.UnixMilli(p.Trade.EntryTime).UTC().Format(time.RFC3339),
			p.Trade.EntryPrice.String(),
			time.UnixMilli(p.Trade.ExitTime).UTC().Format(time.RFC3339),
			p.Trade.ExitPrice.String(),
			p.MonthKey,
			p.Quantity.String(),
			p.RawPnL.String(),
			p.Fee.String(),
			p.NetPnL.String(),
			p.BalanceAfter.String(),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write trades csv: %w", err)
	}
	return sb.String(), nil
}

// formatCount is used by the markdown renderer for integer cells.
func formatCount(n int) string {
	return strconv.Itoa(n)
}
