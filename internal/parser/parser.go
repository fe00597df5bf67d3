// Package parser turns broadcast message text into entry and exit signals.
//
// Entry messages announce "Actual price: <number> <unit>" (or "Current price:").
// Exit messages carry a verdict marker (✅/❌), a direction marker (↗/↘) and a
// "price is UP|DOWN to <number>" clause. Exit matching is positional-free: the
// clause and the markers are located independently, so layout changes in the
// message do not drop exits.
package parser

import (
	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
)

// Parse converts one message into a Signal. Messages without text, or whose
// text matches neither pattern, yield domain.NoSignal. Parse never fails.
func Parse(msg domain.RawMessage) domain.Signal {
	if !msg.HasText() {
		return domain.NoSignal
	}
	return ParseText(msg.Text, msg.Timestamp)
}

// ParseText parses text observed at ts (ms). Entry takes precedence over exit.
func ParseText(text string, ts int64) domain.Signal {
	tokens := tokenize(text)

	if price, ok := matchEntryPrice(tokens); ok {
		return domain.NewEntry(domain.EntrySignal{Price: price, Time: ts})
	}

	price, ok := matchPriceClause(tokens)
	if !ok {
		return domain.NoSignal
	}
	verdict := findVerdict(tokens)
	direction := findDirection(tokens)
	if verdict == domain.VerdictNone && direction == domain.DirectionNone {
		return domain.NoSignal
	}

	return domain.NewExit(domain.ExitSignal{
		Price:             price,
		Time:              ts,
		Side:              DeriveSide(verdict, direction),
		Verdict:           verdict,
		Direction:         direction,
		ReportedChangePct: matchReportedChange(tokens),
	})
}

// DeriveSide maps the verdict and direction markers to a trade side.
//
//	failure + down -> LONG
//	success + up   -> LONG
//	failure + up   -> SHORT
//	success + down -> SHORT
//	otherwise      -> UNKNOWN
func DeriveSide(v domain.Verdict, d domain.Direction) domain.Side {
	switch {
	case v == domain.VerdictFailure && d == domain.DirectionDown:
		return domain.SideLong
	case v == domain.VerdictSuccess && d == domain.DirectionUp:
		return domain.SideLong
	case v == domain.VerdictFailure && d == domain.DirectionUp:
		return domain.SideShort
	case v == domain.VerdictSuccess && d == domain.DirectionDown:
		return domain.SideShort
	default:
		return domain.SideUnknown
	}
}

// matchEntryPrice finds "(actual|current) price : <number>".
func matchEntryPrice(tokens []token) (decimal.Decimal, bool) {
	for i := 0; i+3 < len(tokens); i++ {
		if !tokens[i].isWord("actual", "current") ||
			!tokens[i+1].isWord("price") ||
			!tokens[i+2].isPunct(":") ||
			tokens[i+3].kind != tokNumber {
			continue
		}
		if price, ok := positivePrice(tokens[i+3].text); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

// matchPriceClause finds "price is (up|down) to <number>".
func matchPriceClause(tokens []token) (decimal.Decimal, bool) {
	for i := 0; i+4 < len(tokens); i++ {
		if !tokens[i].isWord("price") ||
			!tokens[i+1].isWord("is") ||
			!tokens[i+2].isWord("up", "down") ||
			!tokens[i+3].isWord("to") ||
			tokens[i+4].kind != tokNumber {
			continue
		}
		if price, ok := positivePrice(tokens[i+4].text); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

// matchReportedChange finds "(profit|loss) of trade is : <number> %".
// Loss values are returned negative.
func matchReportedChange(tokens []token) *decimal.Decimal {
	for i := 0; i+5 < len(tokens); i++ {
		if !tokens[i].isWord("profit", "loss") ||
			!tokens[i+1].isWord("of") ||
			!tokens[i+2].isWord("trade") ||
			!tokens[i+3].isWord("is") ||
			!tokens[i+4].isPunct(":") ||
			tokens[i+5].kind != tokNumber {
			continue
		}
		pct, err := decimal.NewFromString(tokens[i+5].text)
		if err != nil {
			continue
		}
		if tokens[i].text == "loss" {
			pct = pct.Neg()
		}
		return &pct
	}
	return nil
}

func findVerdict(tokens []token) domain.Verdict {
	for _, t := range tokens {
		switch t.marker {
		case markerSuccess:
			return domain.VerdictSuccess
		case markerFailure:
			return domain.VerdictFailure
		}
	}
	return domain.VerdictNone
}

func findDirection(tokens []token) domain.Direction {
	for _, t := range tokens {
		switch t.marker {
		case markerUp:
			return domain.DirectionUp
		case markerDown:
			return domain.DirectionDown
		}
	}
	return domain.DirectionNone
}

func positivePrice(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
