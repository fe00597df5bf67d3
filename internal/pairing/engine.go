// Package pairing pairs entry signals with exit signals to form trades.
//
// The engine holds at most one pending entry. A new entry replaces the pending
// one (last entry wins), an exit closes the pending entry into a trade, and an
// exit with nothing pending is dropped. Batch pairing is Apply run over the
// whole log from the zero state, so batch and incremental results are
// identical by construction.
package pairing

import (
	"fmt"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/idhash"
	"signal-trade-lab/internal/parser"
)

// Outcome describes what one message did to the pairing state.
type Outcome int

const (
	OutcomeSkipped          Outcome = iota // no signal in the message
	OutcomeEntryOpened                     // entry stored in an empty slot
	OutcomeEntryOverwritten                // entry replaced a pending entry
	OutcomeTradeClosed                     // exit closed the pending entry
	OutcomeOrphanExit                      // exit dropped, nothing to close
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeEntryOpened:
		return "entry_opened"
	case OutcomeEntryOverwritten:
		return "entry_overwritten"
	case OutcomeTradeClosed:
		return "trade_closed"
	case OutcomeOrphanExit:
		return "orphan_exit"
	default:
		return "skipped"
	}
}

// Step is the result of applying one message.
type Step struct {
	MessageID int64
	Outcome   Outcome
	Signal    domain.Signal
	Trade     *domain.Trade        // set for OutcomeTradeClosed
	Discarded *domain.PendingEntry // set for OutcomeEntryOverwritten
	Reason    error                // set for OutcomeOrphanExit when the drop had a cause
}

// ParseFunc converts a message into a signal.
type ParseFunc func(domain.RawMessage) domain.Signal

// Hooks are optional callbacks fired while pairing. All run synchronously.
type Hooks struct {
	// OnEntryOverwritten fires when a pending entry is replaced before any exit.
	// The discarded entry is not kept anywhere else.
	OnEntryOverwritten func(discarded, replacement domain.PendingEntry)

	// OnOrphanExit fires when an exit cannot close a trade.
	// reason is nil when nothing was pending, ErrExitBeforeEntry otherwise.
	OnOrphanExit func(msg domain.RawMessage, exit domain.ExitSignal, reason error)

	// OnTrade fires for every completed trade.
	OnTrade func(trade domain.Trade)
}

// Options configures an Engine.
type Options struct {
	Parse  ParseFunc       // default: parser.Parse
	Hooks  Hooks           // optional
	Logger *zerolog.Logger // default: disabled
}

// Engine applies the pairing rules. It holds no pairing state of its own;
// state is passed explicitly so it can be persisted between calls.
type Engine struct {
	parse  ParseFunc
	hooks  Hooks
	logger zerolog.Logger
}

// NewEngine creates a pairing engine.
func NewEngine(opts Options) *Engine {
	parse := opts.Parse
	if parse == nil {
		parse = parser.Parse
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "pairing").Logger()
	}

	return &Engine{
		parse:  parse,
		hooks:  opts.Hooks,
		logger: logger,
	}
}

// Apply runs one message through the pairing rules, mutating state.
// Messages must arrive with ids greater than state.LastMessageID; anything
// else returns ErrOutOfOrder and leaves state untouched.
func (e *Engine) Apply(state *domain.PairingState, msg domain.RawMessage) (Step, error) {
	if msg.ID <= state.LastMessageID {
		return Step{MessageID: msg.ID}, fmt.Errorf("%w: message %d, cursor %d", ErrOutOfOrder, msg.ID, state.LastMessageID)
	}
	state.LastMessageID = msg.ID

	sig := e.parse(msg)
	step := Step{MessageID: msg.ID, Signal: sig, Outcome: OutcomeSkipped}

	switch sig.Kind {
	case domain.SignalEntry:
		entry := domain.PendingEntry{
			Price:     sig.Entry.Price,
			Time:      sig.Entry.Time,
			MessageID: msg.ID,
		}
		step.Outcome = OutcomeEntryOpened
		if state.Pending != nil {
			discarded := *state.Pending
			step.Outcome = OutcomeEntryOverwritten
			step.Discarded = &discarded
			e.logger.Warn().
				Int64("discarded_message_id", discarded.MessageID).
				Str("discarded_price", discarded.Price.String()).
				Int64("message_id", msg.ID).
				Str("price", entry.Price.String()).
				Msg("pending entry overwritten")
			if e.hooks.OnEntryOverwritten != nil {
				e.hooks.OnEntryOverwritten(discarded, entry)
			}
		}
		state.Pending = &entry

	case domain.SignalExit:
		exit := *sig.Exit
		if state.Pending == nil {
			step.Outcome = OutcomeOrphanExit
			e.orphan(msg, exit, nil)
			break
		}
		if exit.Time < state.Pending.Time {
			step.Outcome = OutcomeOrphanExit
			step.Reason = ErrExitBeforeEntry
			e.orphan(msg, exit, ErrExitBeforeEntry)
			break
		}

		trade := closeTrade(*state.Pending, msg.ID, exit)
		state.Pending = nil
		step.Outcome = OutcomeTradeClosed
		step.Trade = &trade
		e.logger.Debug().
			Str("trade_id", trade.TradeID).
			Str("side", trade.Side.String()).
			Int64("entry_message_id", trade.EntryMessageID).
			Int64("exit_message_id", trade.ExitMessageID).
			Msg("trade closed")
		if e.hooks.OnTrade != nil {
			e.hooks.OnTrade(trade)
		}
	}

	return step, nil
}

// ApplyAll applies msgs in order and returns the trades they close.
// Messages at or before the state cursor are skipped, which lets a caller
// resume from a persisted state over a log that overlaps it.
// msgs must satisfy ValidateOrdering.
func (e *Engine) ApplyAll(state *domain.PairingState, msgs []domain.RawMessage) ([]domain.Trade, error) {
	if err := ValidateOrdering(msgs); err != nil {
		return nil, err
	}

	var trades []domain.Trade
	for _, msg := range msgs {
		if msg.ID <= state.LastMessageID {
			continue
		}
		step, err := e.Apply(state, msg)
		if err != nil {
			return trades, err
		}
		if step.Trade != nil {
			trades = append(trades, *step.Trade)
		}
	}
	return trades, nil
}

// Pair runs the full pairing pass over a log, starting from the zero state.
// It is deterministic: the same log always yields the same trades and state.
func (e *Engine) Pair(msgs []domain.RawMessage) ([]domain.Trade, domain.PairingState, error) {
	var state domain.PairingState
	trades, err := e.ApplyAll(&state, msgs)
	if err != nil {
		return nil, domain.PairingState{}, err
	}
	return trades, state, nil
}

func (e *Engine) orphan(msg domain.RawMessage, exit domain.ExitSignal, reason error) {
	ev := e.logger.Debug().Int64("message_id", msg.ID).Str("price", exit.Price.String())
	if reason != nil {
		ev = ev.Err(reason)
	}
	ev.Msg("exit dropped")
	if e.hooks.OnOrphanExit != nil {
		e.hooks.OnOrphanExit(msg, exit, reason)
	}
}

func closeTrade(entry domain.PendingEntry, exitMessageID int64, exit domain.ExitSignal) domain.Trade {
	return domain.Trade{
		TradeID:        idhash.ComputeTradeID(entry.MessageID, exitMessageID, entry.Time, exit.Time),
		EntryPrice:     entry.Price,
		EntryTime:      entry.Time,
		EntryMessageID: entry.MessageID,
		ExitPrice:      exit.Price,
		ExitTime:       exit.Time,
		ExitMessageID:  exitMessageID,
		Side:           exit.Side,
	}
}
