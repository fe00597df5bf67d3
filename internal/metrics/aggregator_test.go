package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
	"signal-trade-lab/internal/storage/memory"
)

func TestAggregator_ComputeAndStore(t *testing.T) {
	ctx := context.Background()
	tradeStore := memory.NewTradeStore()
	statStore := memory.NewMonthlyStatStore()

	trades := []domain.Trade{
		makeTrade("t1", domain.SideLong, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1)),
		makeTrade("t2", domain.SideShort, "50000", "49500", ms(2024, 2, 1, 0), ms(2024, 2, 1, 1)),
		makeTrade("t3", domain.SideLong, "0", "49500", ms(2024, 2, 2, 0), ms(2024, 2, 2, 1)),
	}
	if err := tradeStore.ReplaceAll(ctx, domain.TradeRefs(trades)); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	agg := NewAggregator(tradeStore, statStore)
	res, err := agg.ComputeAndStore(ctx, testModel(), "run-1", 1700000000000)
	if err != nil {
		t.Fatalf("ComputeAndStore failed: %v", err)
	}

	if !res.TotalEarnings.Equal(d("39.2")) {
		t.Errorf("TotalEarnings = %s, want 39.2", res.TotalEarnings)
	}
	if got := agg.GetRejectedErrors(); len(got) != 1 {
		t.Errorf("expected 1 rejected trade, got %v", got)
	}

	stats, err := statStore.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stored %d buckets, want 2", len(stats))
	}
	if stats[0].Bucket.MonthKey != "2024-01" || !stats[0].Bucket.Earnings.Equal(d("19.6")) {
		t.Errorf("January bucket = %+v", stats[0].Bucket)
	}

	// Same run id again is rejected by the append-only store.
	_, err = agg.ComputeAndStore(ctx, testModel(), "run-1", 1700000000001)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestAggregator_EmptySnapshot(t *testing.T) {
	agg := NewAggregator(memory.NewTradeStore(), nil)

	_, err := agg.ComputeAggregate(context.Background(), testModel())
	if !errors.Is(err, ErrNoTrades) {
		t.Errorf("Expected ErrNoTrades, got %v", err)
	}
}

func TestAggregator_InvalidModel(t *testing.T) {
	model := testModel()
	model.Leverage = d("0")

	_, err := NewAggregator(memory.NewTradeStore(), nil).ComputeAggregate(context.Background(), model)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestAggregator_WithLocation(t *testing.T) {
	ctx := context.Background()
	tradeStore := memory.NewTradeStore()

	// 2024-01-31 20:00 UTC is already February in UTC+9.
	trade := makeTrade("t1", domain.SideLong, "50000", "50500", ms(2024, 1, 31, 10), ms(2024, 1, 31, 20))
	if err := tradeStore.Insert(ctx, &trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	res, err := NewAggregator(tradeStore, nil).
		WithLocation(time.FixedZone("UTC+9", 9*3600)).
		ComputeAggregate(ctx, testModel())
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}
	if res.Months[0].MonthKey != "2024-02" {
		t.Errorf("MonthKey = %s, want 2024-02", res.Months[0].MonthKey)
	}
}
