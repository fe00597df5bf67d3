package memory

import (
	"context"
	"sync"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// MessageStore is an in-memory implementation of storage.MessageStore.
type MessageStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.RawMessage // keyed by message id
}

// NewMessageStore creates a new in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		data: make(map[int64]*domain.RawMessage),
	}
}

// Insert adds a new message. Returns ErrDuplicateKey if the id exists.
func (s *MessageStore) Insert(_ context.Context, m *domain.RawMessage) error {
	if err := storage.ValidateMessage(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *m
	s.data[m.ID] = &copy
	return nil
}

// InsertBulk adds multiple messages atomically. Fails entire batch on any duplicate.
func (s *MessageStore) InsertBulk(_ context.Context, msgs []*domain.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		if err := storage.ValidateMessage(m); err != nil {
			return err
		}
		if _, exists := s.data[m.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[m.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[m.ID] = struct{}{}
	}

	for _, m := range msgs {
		copy := *m
		s.data[m.ID] = &copy
	}

	return nil
}

// GetByID retrieves a message by id. Returns ErrNotFound if not exists.
func (s *MessageStore) GetByID(_ context.Context, id int64) (*domain.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

// GetAll retrieves the whole log ordered by id ASC.
func (s *MessageStore) GetAll(ctx context.Context) ([]*domain.RawMessage, error) {
	return s.GetAfter(ctx, 0)
}

// GetAfter retrieves messages with id > afterID ordered by id ASC.
func (s *MessageStore) GetAfter(_ context.Context, afterID int64) ([]*domain.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawMessage
	for id, m := range s.data {
		if id > afterID {
			copy := *m
			result = append(result, &copy)
		}
	}

	storage.SortMessages(result)
	return result, nil
}

// LastID returns the highest stored id, or 0 for an empty log.
func (s *MessageStore) LastID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last int64
	for id := range s.data {
		if id > last {
			last = id
		}
	}
	return last, nil
}

var _ storage.MessageStore = (*MessageStore)(nil)
