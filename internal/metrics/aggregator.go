package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes earnings and drawdown from the stored trade snapshot.
type Aggregator struct {
	tradeStore storage.TradeStore
	statStore  storage.MonthlyStatStore // optional
	location   *time.Location

	// Rejected tracks trades excluded by the last run (for data quality reporting).
	Rejected []RejectedTrade
}

// NewAggregator creates a new aggregator. statStore may be nil.
func NewAggregator(tradeStore storage.TradeStore, statStore storage.MonthlyStatStore) *Aggregator {
	return &Aggregator{
		tradeStore: tradeStore,
		statStore:  statStore,
		location:   time.UTC,
	}
}

// WithLocation sets the time zone used for month buckets.
func (a *Aggregator) WithLocation(loc *time.Location) *Aggregator {
	if loc != nil {
		a.location = loc
	}
	return a
}

// ComputeAggregate loads all trades and aggregates them under model.
// Returns ErrNoTrades if the snapshot is empty or every trade was rejected.
func (a *Aggregator) ComputeAggregate(ctx context.Context, model domain.CapitalModel) (*Result, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("capital model: %w", err)
	}

	trades, err := a.tradeStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	res, err := Aggregate(domain.TradeValues(trades), model, a.location)
	a.Rejected = res.Rejected
	return res, err
}

// GetRejectedErrors returns data quality errors for rejected trades.
func (a *Aggregator) GetRejectedErrors() []string {
	return rejectedMessages(a.Rejected)
}

// ComputeAndStore computes the aggregate and records its monthly buckets under runID.
// Returns storage.ErrDuplicateKey if the run already exists.
func (a *Aggregator) ComputeAndStore(ctx context.Context, model domain.CapitalModel, runID string, generatedAt int64) (*Result, error) {
	res, err := a.ComputeAggregate(ctx, model)
	if err != nil {
		return res, err
	}
	if a.statStore == nil {
		return res, nil
	}

	stats := make([]*domain.MonthlyStat, len(res.Months))
	for i, m := range res.Months {
		stats[i] = &domain.MonthlyStat{
			RunID:       runID,
			GeneratedAt: generatedAt,
			Bucket:      m,
		}
	}
	if err := a.statStore.InsertBulk(ctx, stats); err != nil {
		return res, fmt.Errorf("store monthly stats: %w", err)
	}
	return res, nil
}
