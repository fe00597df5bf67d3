package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/observability"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/storage"
)

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Fetched    int // messages returned by the source, duplicates included
	Inserted   int // new messages appended to the log
	Existing   int // messages whose id was already in the log
	Conflicted int // existing ids whose stored text differs from the source
	Repair     *RepairResult
}

// Backfill loads a batch source into the message log and re-pairs the log.
type Backfill struct {
	source   feed.Source
	messages storage.MessageStore
	repairer *Repairer
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewBackfill creates a backfill over source. Messages are appended to the
// repairer's message store.
func NewBackfill(source feed.Source, repairer *Repairer) *Backfill {
	return &Backfill{
		source:   source,
		messages: repairer.stores.Messages,
		repairer: repairer,
		logger:   zerolog.Nop(),
	}
}

// WithLogger sets the logger.
func (b *Backfill) WithLogger(logger zerolog.Logger) *Backfill {
	b.logger = logger.With().Str("component", "backfill").Logger()
	return b
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func (b *Backfill) WithMetrics(m *observability.Metrics) *Backfill {
	b.metrics = m
	return b
}

// Run fetches the source, appends unseen messages and re-pairs the full log.
// The log is append-only: a message whose id is already stored keeps its
// stored text, and a differing text is only logged.
func (b *Backfill) Run(ctx context.Context) (res *BackfillResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.backfill")
	start := time.Now()
	defer func() {
		observability.EndSpan(span, err)
		b.metrics.RecordPipelineRun("backfill", time.Since(start).Seconds(), err)
	}()

	fetched, err := b.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	msgs := domain.MessageValues(fetched)
	pairing.SortMessages(msgs)
	msgs = pairing.Dedupe(msgs)

	res = &BackfillResult{Fetched: len(fetched)}

	var fresh []*domain.RawMessage
	for i := range msgs {
		m := msgs[i]
		stored, err := b.messages.GetByID(ctx, m.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fresh = append(fresh, &m)
		case err != nil:
			return nil, fmt.Errorf("look up message %d: %w", m.ID, err)
		default:
			res.Existing++
			if stored.Text != m.Text || stored.Timestamp != m.Timestamp {
				res.Conflicted++
				b.logger.Warn().Int64("message_id", m.ID).Msg("source differs from stored message, keeping stored")
			}
		}
	}

	if len(fresh) > 0 {
		if err := b.messages.InsertBulk(ctx, fresh); err != nil {
			return nil, fmt.Errorf("append messages: %w", err)
		}
	}
	res.Inserted = len(fresh)

	b.logger.Info().
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("existing", res.Existing).
		Msg("message log updated")

	res.Repair, err = b.repairer.Repair(ctx)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("fetched", res.Fetched),
		attribute.Int("inserted", res.Inserted),
	)
	return res, nil
}
