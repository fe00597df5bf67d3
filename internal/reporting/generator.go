package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/metrics"
)

// DefaultCurrency labels monetary columns when none is configured.
const DefaultCurrency = "USDT"

// Generator produces reports from the stored trade snapshot.
type Generator struct {
	aggregator *metrics.Aggregator
	currency   string
	now        func() time.Time // Injectable clock for deterministic output
	newRunID   func() string
}

// NewGenerator creates a new report generator.
func NewGenerator(aggregator *metrics.Aggregator) *Generator {
	return &Generator{
		aggregator: aggregator,
		currency:   DefaultCurrency,
		now:        func() time.Time { return time.Now().UTC() },
		newRunID:   uuid.NewString,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithCurrency sets the currency label used in column headers.
func (g *Generator) WithCurrency(currency string) *Generator {
	if currency != "" {
		g.currency = currency
	}
	return g
}

// WithRunID fixes the run id instead of generating a random one.
func (g *Generator) WithRunID(runID string) *Generator {
	g.newRunID = func() string { return runID }
	return g
}

// Generate aggregates the trade snapshot under model and records the monthly
// statistics when the aggregator has a stat store.
func (g *Generator) Generate(ctx context.Context, model domain.CapitalModel) (*Report, error) {
	runID := g.newRunID()
	generatedAt := g.now()

	res, err := g.aggregator.ComputeAndStore(ctx, model, runID, generatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}

	return NewReport(res, runID, g.currency, generatedAt), nil
}
