package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// Prices travel as decimal strings in both directions so no precision is lost.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, entry_price, entry_time, entry_message_id,
		exit_price, exit_time, exit_message_id, side
	) VALUES ($1, $2::numeric, $3, $4, $5::numeric, $6, $7, $8)
`

const selectTradeColumns = `
	SELECT trade_id, entry_price::text, entry_time, entry_message_id,
		exit_price::text, exit_time, exit_message_id, side
	FROM trades
`

func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.TradeID, t.EntryPrice.String(), t.EntryTime, t.EntryMessageID,
		t.ExitPrice.String(), t.ExitTime, t.ExitMessageID, t.Side.String(),
	}
}

// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// ReplaceAll atomically replaces every stored trade.
func (s *TradeStore) ReplaceAll(ctx context.Context, trades []*domain.Trade) error {
	for _, t := range trades {
		if err := storage.ValidateTrade(t); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trades`); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}

	for _, t := range trades {
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by trade_id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	row := s.pool.QueryRow(ctx, selectTradeColumns+` WHERE trade_id = $1`, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetAll retrieves all trades ordered by (exit_time ASC, exit_message_id ASC).
func (s *TradeStore) GetAll(ctx context.Context) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, selectTradeColumns+` ORDER BY exit_time ASC, exit_message_id ASC, trade_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var entryPrice, exitPrice, side string

	err := row.Scan(
		&t.TradeID, &entryPrice, &t.EntryTime, &t.EntryMessageID,
		&exitPrice, &t.ExitTime, &t.ExitMessageID, &side,
	)
	if err != nil {
		return nil, err
	}

	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("trade %s entry_price: %w", t.TradeID, err)
	}
	if t.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
		return nil, fmt.Errorf("trade %s exit_price: %w", t.TradeID, err)
	}
	t.Side = domain.Side(side)
	return &t, nil
}
