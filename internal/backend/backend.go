// Package backend opens the configured stores for the commands.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/pipeline"
	"signal-trade-lab/internal/storage"
	chstore "signal-trade-lab/internal/storage/clickhouse"
	"signal-trade-lab/internal/storage/file"
	"signal-trade-lab/internal/storage/memory"
	"signal-trade-lab/internal/storage/migrations"
	pgstore "signal-trade-lab/internal/storage/postgres"
)

// Backend holds every store a command may use.
type Backend struct {
	Messages storage.MessageStore
	Trades   storage.TradeStore
	State    storage.PairingStateStore
	Stats    storage.MonthlyStatStore // nil unless ClickHouse is configured

	// Quarantined lists records the file backend skipped while loading.
	Quarantined []file.Quarantined

	closers []func()
}

// Stores returns the stores used by pipelines and the listener.
func (b *Backend) Stores() pipeline.Stores {
	return pipeline.Stores{
		Messages: b.Messages,
		Trades:   b.Trades,
		State:    b.State,
	}
}

// Close releases database connections. Safe to call more than once.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// NewMemory returns a backend kept entirely in memory.
func NewMemory() *Backend {
	return &Backend{
		Messages: memory.NewMessageStore(),
		Trades:   memory.NewTradeStore(),
		State:    memory.NewPairingStateStore(),
		Stats:    memory.NewMonthlyStatStore(),
	}
}

// Open opens the backend selected by cfg.Storage. Postgres and ClickHouse
// schemas are migrated before use.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{}

	var err error
	switch cfg.Storage.Backend {
	case config.BackendFile:
		err = b.openFile(cfg.Storage.DataDir, logger)
	case config.BackendPostgres:
		err = b.openPostgres(ctx, cfg.Storage.PostgresDSN, logger)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("prepare clickhouse: %w", err)
		}
		b.closers = append(b.closers, func() { conn.Close() })
		b.Stats = chstore.NewMonthlyStatStore(conn)
	}

	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Bool("monthly_stats", b.Stats != nil).
		Msg("storage ready")
	return b, nil
}

func (b *Backend) openFile(dir string, logger zerolog.Logger) error {
	messages, err := file.NewMessageStore(dir, logger)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	trades, err := file.NewTradeStore(dir, logger)
	if err != nil {
		return fmt.Errorf("open trade snapshot: %w", err)
	}

	b.Messages = messages
	b.Trades = trades
	b.State = file.NewPairingStateStore(dir)
	b.Quarantined = append(messages.Quarantined(), trades.Quarantined()...)
	return nil
}

func (b *Backend) openPostgres(ctx context.Context, dsn string, logger zerolog.Logger) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, pool.Close)

	if _, err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	b.Messages = pgstore.NewMessageStore(pool)
	b.Trades = pgstore.NewTradeStore(pool)
	b.State = pgstore.NewPairingStateStore(pool)
	return nil
}
