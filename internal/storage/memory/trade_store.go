package memory

import (
	"context"
	"sync"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
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
	return nil
}

// ReplaceAll swaps the stored trades for the given list.
// Fails without changes on invalid input or duplicate trade_id within the list.
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
	s.data = next
	s.mu.Unlock()
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
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

// GetAll retrieves all trades ordered by exit time.
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

var _ storage.TradeStore = (*TradeStore)(nil)
