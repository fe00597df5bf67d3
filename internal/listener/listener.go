// Package listener runs the live mode: messages arrive one at a time from a
// stream, are appended to the message log, paired incrementally and persisted.
//
// A single goroutine owns the pairing state. Each message is fully handled
// (log append, pairing, trade append, state save) before the next is read, so
// there is never more than one writer to the stores.
package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/pipeline"
	"signal-trade-lab/internal/storage"
)

// ErrStreamClosed is returned by Run when the stream closes while the context is still live.
var ErrStreamClosed = errors.New("message stream closed")

// Orphan exit reasons used as metric labels.
const (
	orphanNoPending       = "no_pending"
	orphanExitBeforeEntry = "exit_before_entry"
)

// Listener consumes a message stream and keeps the stores up to date.
type Listener struct {
	stream   feed.Stream
	messages storage.MessageStore
	trades   storage.TradeStore
	state    storage.PairingStateStore
	engine   *pairing.Engine
	repairer *pipeline.Repairer
	logger   zerolog.Logger
	metrics  *observability.Metrics

	current domain.PairingState
}

// Options contains configuration for creating a Listener.
type Options struct {
	Stream   feed.Stream
	Messages storage.MessageStore
	Trades   storage.TradeStore
	State    storage.PairingStateStore
	Parse    pairing.ParseFunc      // Default: parser.Parse
	Logger   *zerolog.Logger        // Default: disabled
	Metrics  *observability.Metrics // Default: none
}

// New creates a listener.
func New(opts Options) *Listener {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "listener").Logger()
	}

	l := &Listener{
		stream:   opts.Stream,
		messages: opts.Messages,
		trades:   opts.Trades,
		state:    opts.State,
		logger:   logger,
		metrics:  opts.Metrics,
	}

	l.engine = pairing.NewEngine(pairing.Options{
		Parse:  opts.Parse,
		Logger: opts.Logger,
		Hooks: pairing.Hooks{
			OnEntryOverwritten: func(_, _ domain.PendingEntry) {
				l.metrics.RecordEntryOverwritten()
			},
			OnOrphanExit: func(_ domain.RawMessage, _ domain.ExitSignal, reason error) {
				label := orphanNoPending
				if reason != nil {
					label = orphanExitBeforeEntry
				}
				l.metrics.RecordOrphanExit(label)
			},
			OnTrade: func(domain.Trade) {
				l.metrics.RecordTrade()
			},
		},
	})

	// Re-pairing replays the whole log; its engine has no hooks so live
	// counters are not inflated.
	repairEngine := pairing.NewEngine(pairing.Options{Parse: opts.Parse, Logger: opts.Logger})
	l.repairer = pipeline.NewRepairer(repairEngine, pipeline.Stores{
		Messages: opts.Messages,
		Trades:   opts.Trades,
		State:    opts.State,
	}).WithLogger(logger).WithMetrics(opts.Metrics)

	return l
}

// State returns a copy of the current pairing state.
func (l *Listener) State() domain.PairingState {
	return l.current.Clone()
}

// Run catches up with the stored log, then consumes the stream until ctx is
// cancelled or the stream closes. Store failures stop the listener.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.catchUp(ctx); err != nil {
		return fmt.Errorf("catch up: %w", err)
	}

	ch, err := l.stream.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	l.logger.Info().Int64("last_message_id", l.current.LastMessageID).Msg("listener started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Int64("last_message_id", l.current.LastMessageID).Msg("listener stopping")
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrStreamClosed
			}
			// A message already taken off the stream is persisted even if
			// shutdown starts meanwhile.
			if err := l.Handle(context.WithoutCancel(ctx), msg); err != nil {
				return err
			}
		}
	}
}

// Handle appends one message to the log and applies it.
//
// A message whose id is already stored is ignored. A new message at or below
// the pairing cursor (a late delivery) is stored and the whole log is
// re-paired, replacing the trade snapshot.
func (l *Listener) Handle(ctx context.Context, msg *domain.RawMessage) error {
	if err := storage.ValidateMessage(msg); err != nil {
		l.logger.Warn().Err(err).Msg("invalid message ignored")
		return nil
	}

	err := l.messages.Insert(ctx, msg)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		l.logger.Debug().Int64("message_id", msg.ID).Msg("duplicate message ignored")
		return nil
	case err != nil:
		return fmt.Errorf("append message %d: %w", msg.ID, err)
	}

	next := l.current.Clone()
	step, err := l.engine.Apply(&next, *msg)
	if errors.Is(err, pairing.ErrOutOfOrder) {
		l.metrics.RecordOutOfOrder()
		l.logger.Warn().
			Int64("message_id", msg.ID).
			Int64("cursor", l.current.LastMessageID).
			Msg("late message, re-pairing full log")
		return l.repair(ctx)
	}
	if err != nil {
		return fmt.Errorf("apply message %d: %w", msg.ID, err)
	}
	l.metrics.RecordMessage(step.Signal.Kind.String(), msg.ID)

	if step.Trade != nil {
		err := l.trades.Insert(ctx, step.Trade)
		l.metrics.RecordSnapshotWrite("trades", err)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("append trade %s: %w", step.Trade.TradeID, err)
		}
	}

	err = l.state.Save(ctx, &next)
	l.metrics.RecordSnapshotWrite("pairing_state", err)
	if err != nil {
		return fmt.Errorf("save pairing state: %w", err)
	}
	l.current = next

	ev := l.logger.Debug()
	if step.Outcome == pairing.OutcomeTradeClosed {
		ev = l.logger.Info().Str("trade_id", step.Trade.TradeID).Str("side", step.Trade.Side.String())
	}
	ev.Int64("message_id", msg.ID).Str("outcome", step.Outcome.String()).Msg("message applied")
	return nil
}

// catchUp loads the saved state and applies any logged messages past its
// cursor, e.g. messages stored by a run that stopped before saving state.
func (l *Listener) catchUp(ctx context.Context) error {
	state := domain.PairingState{}
	loaded, err := l.state.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load pairing state: %w", err)
	default:
		state = *loaded
	}

	lastID, err := l.messages.LastID(ctx)
	if err != nil {
		return fmt.Errorf("read log position: %w", err)
	}
	if state.LastMessageID > lastID {
		l.logger.Warn().
			Int64("cursor", state.LastMessageID).
			Int64("last_message_id", lastID).
			Msg("pairing state ahead of message log, re-pairing")
		return l.repair(ctx)
	}

	pending, err := l.messages.GetAfter(ctx, state.LastMessageID)
	if err != nil {
		return fmt.Errorf("load unpaired messages: %w", err)
	}
	if len(pending) == 0 {
		l.current = state
		return nil
	}

	trades, err := l.engine.ApplyAll(&state, domain.MessageValues(pending))
	if err != nil {
		return fmt.Errorf("apply unpaired messages: %w", err)
	}
	for i := range trades {
		err := l.trades.Insert(ctx, &trades[i])
		l.metrics.RecordSnapshotWrite("trades", err)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("append trade %s: %w", trades[i].TradeID, err)
		}
	}

	err = l.state.Save(ctx, &state)
	l.metrics.RecordSnapshotWrite("pairing_state", err)
	if err != nil {
		return fmt.Errorf("save pairing state: %w", err)
	}
	l.current = state

	l.logger.Info().
		Int("messages", len(pending)).
		Int("trades", len(trades)).
		Msg("caught up with message log")
	return nil
}

func (l *Listener) repair(ctx context.Context) error {
	res, err := l.repairer.Repair(ctx)
	if err != nil {
		return err
	}
	l.current = res.State
	return nil
}
