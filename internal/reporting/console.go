package reporting

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RenderConsole writes the human-readable summary: initial investment, total
// earnings, ROI and one line per month. Amounts are shown with two decimals
// and thousands separators.
func RenderConsole(w io.Writer, r *Report) error {
	p := message.NewPrinter(language.English)
	cur := r.Currency

	lines := []struct {
		format string
		args   []any
	}{
		{"Initial Investment: %.2f %s\n", []any{r.InitialInvestment.InexactFloat64(), cur}},
		{"Total Earnings: %.2f %s\n", []any{r.TotalEarnings.InexactFloat64(), cur}},
		{"Total ROI: %.2f%%\n", []any{r.ROI.InexactFloat64()}},
		{"Final Balance: %.2f %s\n", []any{r.FinalBalance.InexactFloat64(), cur}},
		{"Trades: %d (unknown side: %d)\n", []any{r.TradeCount, r.UnknownSideCount}},
	}
	for _, l := range lines {
		if _, err := p.Fprintf(w, l.format, l.args...); err != nil {
			return err
		}
	}

	for _, m := range r.Months {
		if _, err := p.Fprintf(w, "Earnings for %s: %.2f %s, Max Drawdown: %.2f %s\n",
			m.Month, m.Earnings.InexactFloat64(), cur, m.MaxDrawdown.InexactFloat64(), cur); err != nil {
			return err
		}
	}

	if len(r.RejectedTrades) > 0 {
		if _, err := p.Fprintf(w, "Excluded trades: %d\n", len(r.RejectedTrades)); err != nil {
			return err
		}
		for _, msg := range r.RejectedTrades {
			if _, err := p.Fprintf(w, "  - %s\n", msg); err != nil {
				return err
			}
		}
	}

	return nil
}
