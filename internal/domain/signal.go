package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the position direction of a trade.
type Side string

const (
	SideLong    Side = "LONG"
	SideShort   Side = "SHORT"
	SideUnknown Side = "UNKNOWN"
)

// String returns the string representation of Side.
func (s Side) String() string {
	if s == "" {
		return string(SideUnknown)
	}
	return string(s)
}

// IsValid checks if the side is a known value.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort || s == SideUnknown
}

// MarshalJSON writes the side as its string form.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "LONG", "SHORT", "UNKNOWN", an empty string or null.
// Empty and null decode to SideUnknown.
func (s *Side) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = SideUnknown
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch Side(v) {
	case SideLong, SideShort, SideUnknown:
		*s = Side(v)
	case "":
		*s = SideUnknown
	default:
		return fmt.Errorf("unknown side %q", v)
	}
	return nil
}

// Verdict is the prediction-correctness marker of an exit message.
type Verdict string

const (
	VerdictNone    Verdict = ""
	VerdictSuccess Verdict = "SUCCESS"
	VerdictFailure Verdict = "FAILURE"
)

// Direction is the realized price-direction marker of an exit message.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// SignalKind tags which variant a Signal holds.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalEntry
	SignalExit
)

// String returns the string representation of SignalKind.
func (k SignalKind) String() string {
	switch k {
	case SignalEntry:
		return "entry"
	case SignalExit:
		return "exit"
	default:
		return "none"
	}
}

// EntrySignal announces the price at which a predicted move begins.
type EntrySignal struct {
	Price decimal.Decimal // > 0
	Time  int64           // message time (ms)
}

// ExitSignal reports the outcome price of a prediction.
type ExitSignal struct {
	Price     decimal.Decimal // > 0
	Time      int64           // message time (ms)
	Side      Side
	Verdict   Verdict
	Direction Direction

	// ReportedChangePct is the "Profit/Loss of trade is: X %" figure, negative for a loss.
	// Informational only.
	ReportedChangePct *decimal.Decimal
}

// Signal is the parse result of one message. Exactly one of Entry/Exit is set
// when Kind is SignalEntry/SignalExit; both are nil for SignalNone.
type Signal struct {
	Kind  SignalKind
	Entry *EntrySignal
	Exit  *ExitSignal
}

// NoSignal is the zero Signal.
var NoSignal = Signal{Kind: SignalNone}

// NewEntry wraps an EntrySignal.
func NewEntry(e EntrySignal) Signal {
	return Signal{Kind: SignalEntry, Entry: &e}
}

// NewExit wraps an ExitSignal.
func NewExit(e ExitSignal) Signal {
	return Signal{Kind: SignalExit, Exit: &e}
}
