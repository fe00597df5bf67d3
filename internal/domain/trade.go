package domain

import "github.com/shopspring/decimal"

// Trade is a paired entry and exit. Immutable once created.
// Invariant: ExitTime >= EntryTime.
type Trade struct {
	TradeID string // deterministic hash of message ids and times

	EntryPrice     decimal.Decimal
	EntryTime      int64 // entry message time (ms)
	EntryMessageID int64

	ExitPrice     decimal.Decimal
	ExitTime      int64 // exit message time (ms)
	ExitMessageID int64

	Side Side
}

// HoldDurationMs returns the time between entry and exit.
func (t *Trade) HoldDurationMs() int64 {
	return t.ExitTime - t.EntryTime
}

// PendingEntry is an entry waiting for its exit.
type PendingEntry struct {
	Price     decimal.Decimal `json:"price"`
	Time      int64           `json:"time"`
	MessageID int64           `json:"message_id"`
}

// PairingState is the complete state of the pairing engine between two messages.
// The zero value is the initial state.
type PairingState struct {
	Pending       *PendingEntry `json:"pending"`
	LastMessageID int64         `json:"last_message_id"`
}

// Clone returns a deep copy of the state.
func (s PairingState) Clone() PairingState {
	out := PairingState{LastMessageID: s.LastMessageID}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}

// Equal reports whether two states are identical.
func (s PairingState) Equal(o PairingState) bool {
	if s.LastMessageID != o.LastMessageID {
		return false
	}
	if s.Pending == nil || o.Pending == nil {
		return s.Pending == nil && o.Pending == nil
	}
	return s.Pending.Price.Equal(o.Pending.Price) &&
		s.Pending.Time == o.Pending.Time &&
		s.Pending.MessageID == o.Pending.MessageID
}

// MonthlyBucket holds aggregated results for one calendar month of exit times.
type MonthlyBucket struct {
	MonthKey    string          // "YYYY-MM"
	Earnings    decimal.Decimal // sum of net PnL of trades exiting this month
	PeakBalance decimal.Decimal // highest balance seen, carried in from prior months
	MaxDrawdown decimal.Decimal // largest PeakBalance - balance within the month, never negative
	EndBalance  decimal.Decimal // balance after the month's last trade
	Trades      int             // trades counted, including UNKNOWN side
}

// MonthlyStat is a MonthlyBucket recorded by one report run.
type MonthlyStat struct {
	RunID       string
	GeneratedAt int64 // run time (ms)
	Bucket      MonthlyBucket
}
