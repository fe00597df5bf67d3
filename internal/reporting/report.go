package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/metrics"
)

// Report is the rendered view of one aggregation run.
type Report struct {
	// Metadata
	RunID       string
	GeneratedAt time.Time
	Currency    string

	// Summary
	InitialInvestment decimal.Decimal
	TotalEarnings     decimal.Decimal
	ROI               decimal.Decimal // percent
	FinalBalance      decimal.Decimal
	MaxDrawdown       decimal.Decimal // worst monthly drawdown
	TradeCount        int
	UnknownSideCount  int

	// Months sorted ascending by month key
	Months []MonthRow

	// Trades in processing order, for the trade export
	Trades []metrics.TradePnL

	// Data quality
	RejectedTrades []string
}

// MonthRow is one line of the monthly table.
type MonthRow struct {
	Month       string // "YYYY-MM"
	Earnings    decimal.Decimal
	MaxDrawdown decimal.Decimal
	Trades      int
}

// NewReport builds a report from an aggregation result.
func NewReport(res *metrics.Result, runID, currency string, generatedAt time.Time) *Report {
	r := &Report{
		RunID:             runID,
		GeneratedAt:       generatedAt,
		Currency:          currency,
		InitialInvestment: res.InitialInvestment,
		TotalEarnings:     res.TotalEarnings,
		ROI:               res.ROI(),
		FinalBalance:      res.FinalBalance,
		MaxDrawdown:       res.MaxDrawdown(),
		TradeCount:        res.TradeCount,
		UnknownSideCount:  res.UnknownSideCount,
		Trades:            res.Trades,
		RejectedTrades:    res.RejectedMessages(),
	}
	r.Months = make([]MonthRow, len(res.Months))
	for i, m := range res.Months {
		r.Months[i] = MonthRow{
			Month:       m.MonthKey,
			Earnings:    m.Earnings,
			MaxDrawdown: m.MaxDrawdown,
			Trades:      m.Trades,
		}
	}
	return r
}

// MonthsTotal returns the sum of monthly earnings.
func (r *Report) MonthsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range r.Months {
		sum = sum.Add(m.Earnings)
	}
	return sum
}
