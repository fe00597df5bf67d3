package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/feed"
	"signal-trade-lab/internal/metrics"
	"signal-trade-lab/internal/pairing"
	"signal-trade-lab/internal/reporting"
	"signal-trade-lab/internal/storage"
	"signal-trade-lab/internal/storage/memory"
)

func newMemoryStores() Stores {
	return Stores{
		Messages: memory.NewMessageStore(),
		Trades:   memory.NewTradeStore(),
		State:    memory.NewPairingStateStore(),
	}
}

func newRepairer(stores Stores) *Repairer {
	return NewRepairer(pairing.NewEngine(pairing.Options{}), stores)
}

func TestBackfill_Fixtures(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()

	res, err := NewBackfill(feed.SliceSource(FixtureMessages()), newRepairer(stores)).Run(ctx)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	if res.Inserted != 7 || res.Existing != 0 {
		t.Errorf("Inserted=%d Existing=%d, want 7 and 0", res.Inserted, res.Existing)
	}
	if len(res.Repair.Trades) != 2 {
		t.Fatalf("paired %d trades, want 2", len(res.Repair.Trades))
	}

	first := res.Repair.Trades[0]
	if first.Side != domain.SideLong || first.EntryMessageID != 102 || first.ExitMessageID != 103 {
		t.Errorf("first trade = %+v, want LONG 102 -> 103", first)
	}
	if !first.EntryPrice.Equal(decimal.RequireFromString("50000")) {
		t.Errorf("first entry price = %s, want 50000 (overwritten entry)", first.EntryPrice)
	}
	second := res.Repair.Trades[1]
	if second.Side != domain.SideShort || second.ExitMessageID != 107 {
		t.Errorf("second trade = %+v, want SHORT exiting at 107", second)
	}

	stored, err := stores.Trades.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored %d trades, want 2", len(stored))
	}

	state, err := stores.State.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.LastMessageID != 107 || state.Pending != nil {
		t.Errorf("state = %+v, want cursor 107 with nothing pending", state)
	}
}

func TestBackfill_Idempotent(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	backfill := NewBackfill(feed.SliceSource(FixtureMessages()), newRepairer(stores))

	first, err := backfill.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := backfill.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if second.Inserted != 0 || second.Existing != 7 {
		t.Errorf("second run Inserted=%d Existing=%d, want 0 and 7", second.Inserted, second.Existing)
	}
	if len(first.Repair.Trades) != len(second.Repair.Trades) {
		t.Fatalf("trade count changed: %d then %d", len(first.Repair.Trades), len(second.Repair.Trades))
	}
	for i := range first.Repair.Trades {
		if first.Repair.Trades[i].TradeID != second.Repair.Trades[i].TradeID {
			t.Errorf("trade %d id changed between runs", i)
		}
	}
}

func TestBackfill_KeepsStoredText(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()

	original := &domain.RawMessage{ID: 5, Timestamp: fixtureJan, Text: "Actual price: 100 USDT"}
	if err := stores.Messages.Insert(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	edited := []*domain.RawMessage{
		{ID: 5, Timestamp: fixtureJan, Text: "Actual price: 200 USDT"},
		{ID: 4, Timestamp: fixtureJan - hourMs, Text: "hello"},
		{ID: 4, Timestamp: fixtureJan - hourMs, Text: "hello"},
	}
	res, err := NewBackfill(feed.SliceSource(edited), newRepairer(stores)).Run(ctx)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	if res.Fetched != 3 || res.Inserted != 1 || res.Conflicted != 1 {
		t.Errorf("Fetched=%d Inserted=%d Conflicted=%d, want 3, 1, 1", res.Fetched, res.Inserted, res.Conflicted)
	}
	got, err := stores.Messages.GetByID(ctx, 5)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Text != original.Text {
		t.Errorf("stored text = %q, want it unchanged", got.Text)
	}
	if res.Repair.State.Pending == nil || !res.Repair.State.Pending.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("pending entry = %+v, want price 100", res.Repair.State.Pending)
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context) ([]*domain.RawMessage, error) {
	return nil, errors.New("export unavailable")
}

func TestBackfill_SourceError(t *testing.T) {
	stores := newMemoryStores()
	_, err := NewBackfill(failingSource{}, newRepairer(stores)).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	if _, err := stores.State.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("state was written despite the failure: %v", err)
	}
}

func TestReportPipeline_Run(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	if err := LoadFixtures(ctx, stores.Messages); err != nil {
		t.Fatalf("LoadFixtures failed: %v", err)
	}
	if _, err := newRepairer(stores).Repair(ctx); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	outDir := t.TempDir()
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	gen := reporting.NewGenerator(metrics.NewAggregator(stores.Trades, memory.NewMonthlyStatStore())).
		WithClock(func() time.Time { return fixed }).
		WithRunID("fixture-run")

	var console bytes.Buffer
	report, err := NewReportPipeline(gen, outDir).WithConsole(&console).Run(ctx, domain.DefaultCapitalModel())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !report.TotalEarnings.Equal(decimal.RequireFromString("39.2")) {
		t.Errorf("TotalEarnings = %s, want 39.2", report.TotalEarnings)
	}
	if !strings.Contains(console.String(), "Total Earnings: 39.20 USDT") {
		t.Errorf("console output missing total:\n%s", console.String())
	}

	for _, name := range []string{MonthlyReportFile, TradesReportFile, MarkdownReport} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	monthly, err := os.ReadFile(filepath.Join(outDir, MonthlyReportFile))
	if err != nil {
		t.Fatalf("read monthly report: %v", err)
	}
	want := "Month,Earnings (USDT),Max Drawdown (USDT)\n" +
		"2024-01,19.6,0\n" +
		"2024-02,19.6,0\n" +
		"Total,39.2,\n"
	if string(monthly) != want {
		t.Errorf("monthly report:\n%s\nwant:\n%s", monthly, want)
	}
}

func TestReportPipeline_NoTrades(t *testing.T) {
	gen := reporting.NewGenerator(metrics.NewAggregator(memory.NewTradeStore(), nil))
	_, err := NewReportPipeline(gen, t.TempDir()).Run(context.Background(), domain.DefaultCapitalModel())
	if !errors.Is(err, metrics.ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
}

func TestVerifier_Consistent(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	if _, err := NewBackfill(feed.SliceSource(FixtureMessages()), newRepairer(stores)).Run(ctx); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	res, err := NewVerifier(pairing.NewEngine(pairing.Options{}), stores).Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.AllPass {
		t.Errorf("expected all checks to pass, failed: %+v", res.Failed())
	}
	if res.Messages != 7 || len(res.Checks) != 4 {
		t.Errorf("Messages=%d Checks=%d, want 7 and 4", res.Messages, len(res.Checks))
	}
}

func TestVerifier_DetectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	if _, err := NewBackfill(feed.SliceSource(FixtureMessages()), newRepairer(stores)).Run(ctx); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	// A message lands in the log without being paired.
	unpaired := &domain.RawMessage{ID: 108, Timestamp: fixtureFeb + 2*hourMs, Text: "Actual price: 47000 USDT/BTC"}
	if err := stores.Messages.Insert(ctx, unpaired); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := stores.Trades.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	res, err := NewVerifier(pairing.NewEngine(pairing.Options{}), stores).Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.AllPass {
		t.Fatal("expected verification to fail")
	}

	failed := map[string]bool{}
	for _, c := range res.Failed() {
		failed[c.Name] = true
	}
	if !failed["Stored trades"] || !failed["Stored state"] {
		t.Errorf("failed checks = %v, want stored trades and stored state", failed)
	}
	if failed["Incremental trades"] || failed["Incremental state"] {
		t.Errorf("batch and incremental pairing disagree: %v", failed)
	}
}
