package storage

import (
	"sort"

	"signal-trade-lab/internal/domain"
)

// SortTrades orders trades by (exit_time ASC, exit_message_id ASC, trade_id ASC).
// Every TradeStore returns trades in this order.
func SortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if a.ExitTime != b.ExitTime {
			return a.ExitTime < b.ExitTime
		}
		if a.ExitMessageID != b.ExitMessageID {
			return a.ExitMessageID < b.ExitMessageID
		}
		return a.TradeID < b.TradeID
	})
}

// SortMessages orders messages by id ASC.
func SortMessages(msgs []*domain.RawMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].ID < msgs[j].ID
	})
}

// ValidateTrade checks the fields a store needs before accepting a trade.
func ValidateTrade(t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return ErrInvalidInput
	}
	if t.ExitTime < t.EntryTime {
		return ErrInvalidInput
	}
	return nil
}

// ValidateMessage checks the fields a store needs before accepting a message.
func ValidateMessage(m *domain.RawMessage) error {
	if m == nil || m.ID <= 0 {
		return ErrInvalidInput
	}
	return nil
}
