package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/idhash"
	"signal-trade-lab/internal/storage"
)

// tradeRecord is the on-disk form of a trade. Prices are JSON numbers,
// times are epoch milliseconds, a null side is UNKNOWN. Snapshots written
// before trade ids existed carry only prices, side and times; their id is
// derived from the times with message ids of 0.
type tradeRecord struct {
	TradeID        string      `json:"trade_id"`
	EntryPrice     json.Number `json:"entry_price"`
	EntryTime      int64       `json:"entry_time"`
	EntryMessageID int64       `json:"entry_message_id"`
	ExitPrice      json.Number `json:"exit_price"`
	ExitTime       int64       `json:"exit_time"`
	ExitMessageID  int64       `json:"exit_message_id"`
	Side           domain.Side `json:"side"`
}

func toTradeRecord(t *domain.Trade) tradeRecord {
	return tradeRecord{
		TradeID:        t.TradeID,
		EntryPrice:     json.Number(t.EntryPrice.String()),
		EntryTime:      t.EntryTime,
		EntryMessageID: t.EntryMessageID,
		ExitPrice:      json.Number(t.ExitPrice.String()),
		ExitTime:       t.ExitTime,
		ExitMessageID:  t.ExitMessageID,
		Side:           t.Side,
	}
}

func (r tradeRecord) toDomain() (*domain.Trade, error) {
	if r.EntryPrice == "" || r.ExitPrice == "" {
		return nil, errors.New("missing price")
	}
	entry, err := decimal.NewFromString(r.EntryPrice.String())
	if err != nil {
		return nil, fmt.Errorf("entry_price: %w", err)
	}
	exit, err := decimal.NewFromString(r.ExitPrice.String())
	if err != nil {
		return nil, fmt.Errorf("exit_price: %w", err)
	}
	side := r.Side
	if side == "" {
		side = domain.SideUnknown
	}
	tradeID := r.TradeID
	if tradeID == "" {
		tradeID = idhash.ComputeTradeID(r.EntryMessageID, r.ExitMessageID, r.EntryTime, r.ExitTime)
	}
	return &domain.Trade{
		TradeID:        tradeID,
		EntryPrice:     entry,
		EntryTime:      r.EntryTime,
		EntryMessageID: r.EntryMessageID,
		ExitPrice:      exit,
		ExitTime:       r.ExitTime,
		ExitMessageID:  r.ExitMessageID,
		Side:           side,
	}, nil
}

// TradeStore is a JSON file implementation of storage.TradeStore.
type TradeStore struct {
	mu          sync.RWMutex
	path        string
	data        map[string]*domain.Trade
	quarantined []Quarantined
}

// NewTradeStore opens (or creates on first write) dir/trades.json.
func NewTradeStore(dir string, logger zerolog.Logger) (*TradeStore, error) {
	s := &TradeStore{
		path: filepath.Join(dir, TradesFile),
		data: make(map[string]*domain.Trade),
	}

	records, _, err := readRecords(s.path)
	if err != nil {
		return nil, err
	}
	for i, raw := range records {
		t, err := decodeTrade(raw)
		if err == nil {
			if _, dup := s.data[t.TradeID]; dup {
				err = fmt.Errorf("trade %s: %w", t.TradeID, storage.ErrDuplicateKey)
			}
		}
		if err != nil {
			s.quarantined = append(s.quarantined, Quarantined{Index: i, Raw: string(raw), Err: err})
			continue
		}
		s.data[t.TradeID] = t
	}
	logQuarantine(logger, TradesFile, s.quarantined)

	return s, nil
}

func decodeTrade(raw json.RawMessage) (*domain.Trade, error) {
	var rec tradeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	t, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	if err := storage.ValidateTrade(t); err != nil {
		return nil, fmt.Errorf("trade %q: %w", t.TradeID, err)
	}
	return t, nil
}

// Quarantined returns the records skipped when the file was loaded.
func (s *TradeStore) Quarantined() []Quarantined {
	return s.quarantined
}

// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	if err := s.flushLocked(); err != nil {
		delete(s.data, t.TradeID)
		return err
	}
	return nil
}

// ReplaceAll atomically replaces every stored trade.
func (s *TradeStore) ReplaceAll(_ context.Context, trades []*domain.Trade) error {
	next := make(map[string]*domain.Trade, len(trades))
	for _, t := range trades {
		if err := storage.ValidateTrade(t); err != nil {
			return err
		}
		if _, exists := next[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		copy := *t
		next[t.TradeID] = &copy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data
	s.data = next
	if err := s.flushLocked(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

// GetByID retrieves a trade by trade_id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// GetAll retrieves all trades ordered by (exit_time ASC, exit_message_id ASC).
func (s *TradeStore) GetAll(_ context.Context) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trade, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}
	storage.SortTrades(result)
	return result, nil
}

func (s *TradeStore) flushLocked() error {
	trades := make([]*domain.Trade, 0, len(s.data))
	for _, t := range s.data {
		trades = append(trades, t)
	}
	storage.SortTrades(trades)

	out := make([]tradeRecord, len(trades))
	for i, t := range trades {
		out[i] = toTradeRecord(t)
	}
	return writeJSONAtomic(s.path, out)
}

var _ storage.TradeStore = (*TradeStore)(nil)
