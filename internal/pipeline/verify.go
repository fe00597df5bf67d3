package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/idhash"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/storage"
)

// VerifyCheck is one consistency criterion.
type VerifyCheck struct {
	Name     string
	Expected string
	Actual   string
	Pass     bool
}

// VerifyResult contains every check of one verification run.
type VerifyResult struct {
	Messages int
	Checks   []VerifyCheck
	AllPass  bool
}

// Failed returns the checks that did not pass.
func (r *VerifyResult) Failed() []VerifyCheck {
	var out []VerifyCheck
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, c)
		}
	}
	return out
}

// Verifier checks that batch pairing, incremental pairing and the stored
// snapshots agree for the current message log.
type Verifier struct {
	engine *pairing.Engine
	stores Stores
}

// NewVerifier creates a verifier. engine should carry no hooks that write
// anywhere, since the log is paired twice.
func NewVerifier(engine *pairing.Engine, stores Stores) *Verifier {
	return &Verifier{engine: engine, stores: stores}
}

// Verify runs four checks:
//  1. batch and incremental trades are identical
//  2. batch and incremental final states are identical
//  3. the stored trade snapshot matches the batch trades
//  4. the stored pairing state matches the batch state
//
// The incremental run round-trips the state through JSON between messages,
// as a live listener persisting its state would.
func (v *Verifier) Verify(ctx context.Context) (res *VerifyResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.verify")
	defer func() { observability.EndSpan(span, err) }()

	stored, err := v.stores.Messages.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load message log: %w", err)
	}
	msgs := domain.MessageValues(stored)

	batchTrades, batchState, err := v.engine.Pair(msgs)
	if err != nil {
		return nil, fmt.Errorf("batch pairing: %w", err)
	}

	incTrades, incState, err := v.pairIncrementally(msgs)
	if err != nil {
		return nil, fmt.Errorf("incremental pairing: %w", err)
	}

	snapshot, err := v.stores.Trades.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	savedState := domain.PairingState{}
	loaded, err := v.stores.State.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load pairing state: %w", err)
	default:
		savedState = *loaded
	}

	batchDigest := idhash.ComputeTradesDigest(batchTrades)
	res = &VerifyResult{Messages: len(msgs)}
	res.Checks = append(res.Checks,
		VerifyCheck{
			Name:     "Incremental trades",
			Expected: batchDigest,
			Actual:   idhash.ComputeTradesDigest(incTrades),
		},
		VerifyCheck{
			Name:     "Incremental state",
			Expected: describeState(batchState),
			Actual:   describeState(incState),
			Pass:     batchState.Equal(incState),
		},
		VerifyCheck{
			Name:     "Stored trades",
			Expected: idhash.ComputeTradesDigest(snapshotOrder(batchTrades)),
			Actual:   idhash.ComputeTradesDigest(domain.TradeValues(snapshot)),
		},
		VerifyCheck{
			Name:     "Stored state",
			Expected: describeState(batchState),
			Actual:   describeState(savedState),
			Pass:     batchState.Equal(savedState),
		},
	)
	res.Checks[0].Pass = res.Checks[0].Expected == res.Checks[0].Actual
	res.Checks[2].Pass = res.Checks[2].Expected == res.Checks[2].Actual

	res.AllPass = true
	for _, c := range res.Checks {
		if !c.Pass {
			res.AllPass = false
		}
	}
	return res, nil
}

func (v *Verifier) pairIncrementally(msgs []domain.RawMessage) ([]domain.Trade, domain.PairingState, error) {
	if err := pairing.ValidateOrdering(msgs); err != nil {
		return nil, domain.PairingState{}, err
	}

	var (
		state  domain.PairingState
		trades []domain.Trade
	)
	for _, msg := range msgs {
		data, err := json.Marshal(state)
		if err != nil {
			return nil, state, err
		}
		var restored domain.PairingState
		if err := json.Unmarshal(data, &restored); err != nil {
			return nil, state, err
		}

		step, err := v.engine.Apply(&restored, msg)
		if err != nil {
			return nil, state, err
		}
		if step.Trade != nil {
			trades = append(trades, *step.Trade)
		}
		state = restored
	}
	return trades, state, nil
}

// snapshotOrder returns trades in the order every TradeStore returns them.
func snapshotOrder(trades []domain.Trade) []domain.Trade {
	refs := domain.TradeRefs(trades)
	storage.SortTrades(refs)
	return domain.TradeValues(refs)
}

func describeState(s domain.PairingState) string {
	if s.Pending == nil {
		return "cursor=" + strconv.FormatInt(s.LastMessageID, 10) + " pending=none"
	}
	return fmt.Sprintf("cursor=%d pending=%d@%s", s.LastMessageID, s.Pending.MessageID, s.Pending.Price)
}
