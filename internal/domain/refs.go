package domain

// TradeRefs returns pointers to copies of trades, for store APIs.
func TradeRefs(trades []Trade) []*Trade {
	out := make([]*Trade, len(trades))
	for i := range trades {
		t := trades[i]
		out[i] = &t
	}
	return out
}

// TradeValues dereferences trades.
func TradeValues(trades []*Trade) []Trade {
	out := make([]Trade, len(trades))
	for i, t := range trades {
		out[i] = *t
	}
	return out
}

// MessageRefs returns pointers to copies of messages, for store APIs.
func MessageRefs(msgs []RawMessage) []*RawMessage {
	out := make([]*RawMessage, len(msgs))
	for i := range msgs {
		m := msgs[i]
		out[i] = &m
	}
	return out
}

// MessageValues dereferences messages.
func MessageValues(msgs []*RawMessage) []RawMessage {
	out := make([]RawMessage, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out
}
