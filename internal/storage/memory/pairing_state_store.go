package memory

import (
	"context"
	"sync"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// PairingStateStore is an in-memory implementation of storage.PairingStateStore.
type PairingStateStore struct {
	mu    sync.RWMutex
	state *domain.PairingState
}

// NewPairingStateStore creates an empty state store.
func NewPairingStateStore() *PairingStateStore {
	return &PairingStateStore{}
}

// Load returns the last saved state. Returns ErrNotFound if never saved.
func (s *PairingStateStore) Load(_ context.Context) (*domain.PairingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	st := s.state.Clone()
	return &st, nil
}

// Save overwrites the stored state.
func (s *PairingStateStore) Save(_ context.Context, state *domain.PairingState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := state.Clone()
	s.state = &st
	return nil
}

var _ storage.PairingStateStore = (*PairingStateStore)(nil)
