package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// PairingStateStore is a JSON file implementation of storage.PairingStateStore.
type PairingStateStore struct {
	mu   sync.Mutex
	path string
}

// NewPairingStateStore uses dir/pairing_state.json.
func NewPairingStateStore(dir string) *PairingStateStore {
	return &PairingStateStore{path: filepath.Join(dir, PairingStateFile)}
}

// Load returns the last saved state. Returns ErrNotFound if the file does not exist
// and ErrCorrupt if it cannot be decoded.
func (s *PairingStateStore) Load(_ context.Context) (*domain.PairingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", PairingStateFile, err)
	}

	var st domain.PairingState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", PairingStateFile, ErrCorrupt, err)
	}
	if st.LastMessageID < 0 || (st.Pending != nil && !st.Pending.Price.IsPositive()) {
		return nil, fmt.Errorf("%s: %w: inconsistent state", PairingStateFile, ErrCorrupt)
	}
	return &st, nil
}

// Save overwrites the stored state.
func (s *PairingStateStore) Save(_ context.Context, state *domain.PairingState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSONAtomic(s.path, state)
}

var _ storage.PairingStateStore = (*PairingStateStore)(nil)
