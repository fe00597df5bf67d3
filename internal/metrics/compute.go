package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
)

var (
	// ErrInvalidEntryPrice is returned for a trade whose entry price is zero, negative or missing.
	ErrInvalidEntryPrice = errors.New("entry price must be positive")

	// ErrInvalidTimestamp is returned for a trade whose times cannot be converted to an instant.
	ErrInvalidTimestamp = errors.New("trade timestamp is not a valid instant")
)

var hundred = decimal.NewFromInt(100)

// TradePnL is the profit and loss of a single trade under a capital model.
type TradePnL struct {
	Trade    domain.Trade
	MonthKey string // calendar month of the exit time

	Notional decimal.Decimal // initial * fraction * leverage
	Quantity decimal.Decimal // notional / entry price, rounded
	RawPnL   decimal.Decimal // before fees
	Fee      decimal.Decimal
	NetPnL   decimal.Decimal // RawPnL - Fee

	BalanceAfter decimal.Decimal // running balance after this trade; set by Aggregate
}

// ComputeTradePnL computes the PnL of one trade.
//
//	notional = initial_investment * investment_fraction * leverage
//	quantity = round(notional / entry_price, precision)
//	raw      = (exit - entry) * quantity   LONG
//	         = (entry - exit) * quantity   SHORT
//	fee      = notional * fee_rate / 100
//	net      = raw - fee
//
// UNKNOWN side trades have zero raw PnL but still pay the fee.
func ComputeTradePnL(trade domain.Trade, model domain.CapitalModel, loc *time.Location) (TradePnL, error) {
	if !trade.EntryPrice.IsPositive() {
		return TradePnL{}, fmt.Errorf("%w: trade %s has entry price %s", ErrInvalidEntryPrice, trade.TradeID, trade.EntryPrice)
	}
	if !domain.ValidTimestamp(trade.EntryTime) || !domain.ValidTimestamp(trade.ExitTime) {
		return TradePnL{}, fmt.Errorf("%w: trade %s entry_time=%d exit_time=%d",
			ErrInvalidTimestamp, trade.TradeID, trade.EntryTime, trade.ExitTime)
	}

	notional := model.Notional()
	quantity := notional.Div(trade.EntryPrice).Round(model.QuantityPrecision)

	raw := decimal.Zero
	switch trade.Side {
	case domain.SideLong:
		raw = trade.ExitPrice.Sub(trade.EntryPrice).Mul(quantity)
	case domain.SideShort:
		raw = trade.EntryPrice.Sub(trade.ExitPrice).Mul(quantity)
	}
	fee := model.Fee()

	return TradePnL{
		Trade:    trade,
		MonthKey: domain.MonthKey(trade.ExitTime, loc),
		Notional: notional,
		Quantity: quantity,
		RawPnL:   raw,
		Fee:      fee,
		NetPnL:   raw.Sub(fee),
	}, nil
}

// sortByExitTime orders trades by (exit_time ASC, exit_message_id ASC, trade_id ASC).
// The input slice is not modified.
func sortByExitTime(trades []domain.Trade) []domain.Trade {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ExitTime != b.ExitTime {
			return a.ExitTime < b.ExitTime
		}
		if a.ExitMessageID != b.ExitMessageID {
			return a.ExitMessageID < b.ExitMessageID
		}
		return a.TradeID < b.TradeID
	})
	return sorted
}

// RejectedTrade is a trade excluded from aggregation, with the reason.
type RejectedTrade struct {
	TradeID        string
	EntryMessageID int64
	ExitMessageID  int64
	Reason         error
}

// String returns a one-line description for data quality reports.
func (r RejectedTrade) String() string {
	return fmt.Sprintf("trade %s (messages %d -> %d) excluded: %v", r.TradeID, r.EntryMessageID, r.ExitMessageID, r.Reason)
}

// Result is the outcome of one aggregation run.
type Result struct {
	InitialInvestment decimal.Decimal
	TotalEarnings     decimal.Decimal
	FinalBalance      decimal.Decimal
	PeakBalance       decimal.Decimal

	Months []domain.MonthlyBucket // ascending by month key
	Trades []TradePnL             // in processing order

	TradeCount       int // accepted trades, UNKNOWN side included
	UnknownSideCount int
	Rejected         []RejectedTrade
}

// ROI returns ((initial + total) / initial - 1) * 100.
func (r *Result) ROI() decimal.Decimal {
	if r.InitialInvestment.IsZero() {
		return decimal.Zero
	}
	return r.InitialInvestment.Add(r.TotalEarnings).
		Div(r.InitialInvestment).
		Sub(decimal.NewFromInt(1)).
		Mul(hundred)
}

// Month returns the bucket for a month key.
func (r *Result) Month(key string) (domain.MonthlyBucket, bool) {
	for _, m := range r.Months {
		if m.MonthKey == key {
			return m, true
		}
	}
	return domain.MonthlyBucket{}, false
}

// MaxDrawdown returns the largest monthly drawdown.
func (r *Result) MaxDrawdown() decimal.Decimal {
	worst := decimal.Zero
	for _, m := range r.Months {
		if m.MaxDrawdown.GreaterThan(worst) {
			worst = m.MaxDrawdown
		}
	}
	return worst
}

// RejectedMessages returns data quality messages for rejected trades.
func (r *Result) RejectedMessages() []string {
	return rejectedMessages(r.Rejected)
}

func rejectedMessages(rejected []RejectedTrade) []string {
	if len(rejected) == 0 {
		return nil
	}
	out := make([]string, len(rejected))
	for i, rej := range rejected {
		out[i] = rej.String()
	}
	return out
}

// Aggregate computes total and monthly results over trades.
//
// Trades are sorted by exit time first. The balance starts at the initial
// investment. Each trade's net PnL lands in the bucket of its exit month. The
// account peak never decreases; a month's peak starts from the peak carried in
// when the month is first entered and the month's drawdown is the largest
// peak - balance seen while processing its trades.
//
// Trades with a non-positive entry price or an unusable timestamp are excluded
// and listed in Result.Rejected. If no trade is accepted the result is still
// returned, carrying the rejections, together with ErrNoTrades.
func Aggregate(trades []domain.Trade, model domain.CapitalModel, loc *time.Location) (*Result, error) {
	res := &Result{
		InitialInvestment: model.InitialInvestment,
		TotalEarnings:     decimal.Zero,
	}

	balance := model.InitialInvestment
	peak := model.InitialInvestment
	buckets := make(map[string]*domain.MonthlyBucket)
	var order []string

	for _, trade := range sortByExitTime(trades) {
		p, err := ComputeTradePnL(trade, model, loc)
		if err != nil {
			res.Rejected = append(res.Rejected, RejectedTrade{
				TradeID:        trade.TradeID,
				EntryMessageID: trade.EntryMessageID,
				ExitMessageID:  trade.ExitMessageID,
				Reason:         err,
			})
			continue
		}

		balance = balance.Add(p.NetPnL)
		res.TotalEarnings = res.TotalEarnings.Add(p.NetPnL)
		p.BalanceAfter = balance

		b, ok := buckets[p.MonthKey]
		if !ok {
			b = &domain.MonthlyBucket{
				MonthKey:    p.MonthKey,
				PeakBalance: peak,
			}
			buckets[p.MonthKey] = b
			order = append(order, p.MonthKey)
		}
		b.Earnings = b.Earnings.Add(p.NetPnL)
		b.Trades++
		b.EndBalance = balance

		if balance.GreaterThan(b.PeakBalance) {
			b.PeakBalance = balance
		}
		if balance.GreaterThan(peak) {
			peak = balance
		}
		if dd := b.PeakBalance.Sub(balance); dd.GreaterThan(b.MaxDrawdown) {
			b.MaxDrawdown = dd
		}

		res.TradeCount++
		if trade.Side != domain.SideLong && trade.Side != domain.SideShort {
			res.UnknownSideCount++
		}
		res.Trades = append(res.Trades, p)
	}

	if res.TradeCount == 0 {
		return res, ErrNoTrades
	}

	sort.Strings(order)
	res.Months = make([]domain.MonthlyBucket, len(order))
	for i, key := range order {
		res.Months[i] = *buckets[key]
	}
	res.FinalBalance = balance
	res.PeakBalance = peak

	return res, nil
}
