// Package pipeline runs the batch operations over the message log: backfill,
// full re-pairing, report generation and batch/incremental verification.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/storage"
)

// Stores groups the stores a pipeline reads and writes.
type Stores struct {
	Messages storage.MessageStore
	Trades   storage.TradeStore
	State    storage.PairingStateStore
}

// RepairResult is the outcome of a full re-pair.
type RepairResult struct {
	Messages int
	Trades   []domain.Trade
	State    domain.PairingState
}

// Repairer re-pairs the whole message log from the zero state and replaces
// the stored trade snapshot and pairing state with the result.
type Repairer struct {
	engine  *pairing.Engine
	stores  Stores
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewRepairer creates a repairer.
func NewRepairer(engine *pairing.Engine, stores Stores) *Repairer {
	return &Repairer{
		engine: engine,
		stores: stores,
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger.
func (r *Repairer) WithLogger(logger zerolog.Logger) *Repairer {
	r.logger = logger.With().Str("component", "repair").Logger()
	return r
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func (r *Repairer) WithMetrics(m *observability.Metrics) *Repairer {
	r.metrics = m
	return r
}

// Repair loads the full log, pairs it, and persists trades then state.
// Trades are written before state so a crash in between leaves a state
// that a later repair recomputes anyway.
func (r *Repairer) Repair(ctx context.Context) (res *RepairResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.repair")
	start := time.Now()
	defer func() {
		observability.EndSpan(span, err)
		r.metrics.RecordPipelineRun("repair", time.Since(start).Seconds(), err)
	}()

	stored, err := r.stores.Messages.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load message log: %w", err)
	}
	msgs := domain.MessageValues(stored)

	trades, state, err := r.engine.Pair(msgs)
	if err != nil {
		return nil, fmt.Errorf("pair message log: %w", err)
	}

	err = r.stores.Trades.ReplaceAll(ctx, domain.TradeRefs(trades))
	r.metrics.RecordSnapshotWrite("trades", err)
	if err != nil {
		return nil, fmt.Errorf("replace trades: %w", err)
	}

	err = r.stores.State.Save(ctx, &state)
	r.metrics.RecordSnapshotWrite("pairing_state", err)
	if err != nil {
		return nil, fmt.Errorf("save pairing state: %w", err)
	}

	r.metrics.RecordRepair()
	span.SetAttributes(
		attribute.Int("messages", len(msgs)),
		attribute.Int("trades", len(trades)),
	)
	r.logger.Info().
		Int("messages", len(msgs)).
		Int("trades", len(trades)).
		Int64("last_message_id", state.LastMessageID).
		Bool("pending_entry", state.Pending != nil).
		Msg("message log re-paired")

	return &RepairResult{Messages: len(msgs), Trades: trades, State: state}, nil
}
