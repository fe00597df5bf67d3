package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// MonthlyStatStore implements storage.MonthlyStatStore using ClickHouse.
// Amounts are stored as decimal strings so reloaded buckets compare exactly.
type MonthlyStatStore struct {
	conn *Conn
}

// NewMonthlyStatStore creates a new MonthlyStatStore.
func NewMonthlyStatStore(conn *Conn) *MonthlyStatStore {
	return &MonthlyStatStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MonthlyStatStore = (*MonthlyStatStore)(nil)

const selectMonthlyStats = `
	SELECT run_id, generated_at, month_key, earnings, peak_balance, max_drawdown, end_balance, trades
	FROM monthly_stats FINAL
`

// InsertBulk stores all buckets of one report run.
// Returns ErrDuplicateKey if any run in the batch already has statistics.
func (s *MonthlyStatStore) InsertBulk(ctx context.Context, stats []*domain.MonthlyStat) error {
	if len(stats) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(stats))
	runs := make(map[string]struct{})
	for _, st := range stats {
		if st == nil || st.RunID == "" || st.Bucket.MonthKey == "" {
			return storage.ErrInvalidInput
		}
		key := st.RunID + "|" + st.Bucket.MonthKey
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		runs[st.RunID] = struct{}{}
	}

	// ReplacingMergeTree would silently replace; keep append-only semantics
	for runID := range runs {
		exists, err := s.runExists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO monthly_stats (
			run_id, generated_at, month_key, earnings, peak_balance, max_drawdown, end_balance, trades
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		b := st.Bucket
		err = batch.Append(
			st.RunID, st.GeneratedAt, b.MonthKey,
			b.Earnings.String(), b.PeakBalance.String(), b.MaxDrawdown.String(), b.EndBalance.String(),
			uint32(b.Trades),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves a run's buckets ordered by month_key ASC.
func (s *MonthlyStatStore) GetByRun(ctx context.Context, runID string) ([]*domain.MonthlyStat, error) {
	rows, err := s.conn.Query(ctx, selectMonthlyStats+`
		WHERE run_id = ?
		ORDER BY month_key ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanMonthlyStats(rows)
}

// GetByMonth retrieves every run's bucket for a month, ordered by generated_at ASC.
func (s *MonthlyStatStore) GetByMonth(ctx context.Context, monthKey string) ([]*domain.MonthlyStat, error) {
	rows, err := s.conn.Query(ctx, selectMonthlyStats+`
		WHERE month_key = ?
		ORDER BY generated_at ASC, run_id ASC
	`, monthKey)
	if err != nil {
		return nil, fmt.Errorf("query by month: %w", err)
	}
	defer rows.Close()

	return scanMonthlyStats(rows)
}

func (s *MonthlyStatStore) runExists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM monthly_stats FINAL WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanMonthlyStats scans multiple rows into a slice.
func scanMonthlyStats(rows chRows) ([]*domain.MonthlyStat, error) {
	var stats []*domain.MonthlyStat

	for rows.Next() {
		var (
			st                               domain.MonthlyStat
			earnings, peak, drawdown, endBal string
			trades                           uint32
		)
		err := rows.Scan(
			&st.RunID, &st.GeneratedAt, &st.Bucket.MonthKey,
			&earnings, &peak, &drawdown, &endBal, &trades,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monthly stat row: %w", err)
		}

		amounts := []struct {
			raw string
			dst *decimal.Decimal
		}{
			{earnings, &st.Bucket.Earnings},
			{peak, &st.Bucket.PeakBalance},
			{drawdown, &st.Bucket.MaxDrawdown},
			{endBal, &st.Bucket.EndBalance},
		}
		for _, a := range amounts {
			if *a.dst, err = decimal.NewFromString(a.raw); err != nil {
				return nil, fmt.Errorf("monthly stat %s/%s: %w", st.RunID, st.Bucket.MonthKey, err)
			}
		}
		st.Bucket.Trades = int(trades)
		stats = append(stats, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stat rows: %w", err)
	}
	return stats, nil
}
