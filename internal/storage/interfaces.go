package storage

import (
	"context"

	"signal-trade-lab/internal/domain"
)

// MessageStore provides access to the append-only raw message log.
type MessageStore interface {
	// Insert adds a new message. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, m *domain.RawMessage) error

	// InsertBulk adds multiple messages atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, msgs []*domain.RawMessage) error

	// GetByID retrieves a message by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.RawMessage, error)

	// GetAll retrieves the whole log ordered by id ASC.
	GetAll(ctx context.Context) ([]*domain.RawMessage, error)

	// GetAfter retrieves messages with id > afterID ordered by id ASC.
	GetAfter(ctx context.Context, afterID int64) ([]*domain.RawMessage, error)

	// LastID returns the highest stored id, or 0 for an empty log.
	LastID(ctx context.Context) (int64, error)
}

// TradeStore provides access to the paired trade snapshot.
type TradeStore interface {
	// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// ReplaceAll atomically replaces every stored trade, used after a full re-pair.
	ReplaceAll(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by trade_id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetAll retrieves all trades ordered by (exit_time ASC, exit_message_id ASC).
	GetAll(ctx context.Context) ([]*domain.Trade, error)
}

// PairingStateStore persists the pairing engine state between incremental runs.
type PairingStateStore interface {
	// Load returns the last saved state. Returns ErrNotFound if never saved.
	Load(ctx context.Context) (*domain.PairingState, error)

	// Save overwrites the stored state.
	Save(ctx context.Context, state *domain.PairingState) error
}

// MonthlyStatStore provides access to per-run monthly statistics.
type MonthlyStatStore interface {
	// InsertBulk stores all buckets of one report run.
	// Returns ErrDuplicateKey if the run already has stored statistics.
	InsertBulk(ctx context.Context, stats []*domain.MonthlyStat) error

	// GetByRun retrieves a run's buckets ordered by month_key ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.MonthlyStat, error)

	// GetByMonth retrieves every run's bucket for a month, ordered by generated_at ASC.
	GetByMonth(ctx context.Context, monthKey string) ([]*domain.MonthlyStat, error)
}
