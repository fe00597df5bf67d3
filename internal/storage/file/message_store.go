package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// DecodeMessages decodes a JSON array of messages. Records that fail to decode
// or carry a non-positive id are returned as quarantined; duplicates of an
// earlier id are quarantined too.
func DecodeMessages(data []byte) ([]*domain.RawMessage, []Quarantined, error) {
	records, err := splitArray(data)
	if err != nil {
		return nil, nil, err
	}
	return decodeMessageRecords(records)
}

func decodeMessageRecords(records []json.RawMessage) ([]*domain.RawMessage, []Quarantined, error) {
	msgs := make([]*domain.RawMessage, 0, len(records))
	var bad []Quarantined
	seen := make(map[int64]struct{}, len(records))

	for i, rec := range records {
		var m domain.RawMessage
		if err := json.Unmarshal(rec, &m); err != nil {
			bad = append(bad, Quarantined{Index: i, Raw: string(rec), Err: err})
			continue
		}
		if err := storage.ValidateMessage(&m); err != nil {
			bad = append(bad, Quarantined{Index: i, Raw: string(rec), Err: fmt.Errorf("message id %d: %w", m.ID, err)})
			continue
		}
		if _, dup := seen[m.ID]; dup {
			bad = append(bad, Quarantined{Index: i, Raw: string(rec), Err: fmt.Errorf("message id %d: %w", m.ID, storage.ErrDuplicateKey)})
			continue
		}
		seen[m.ID] = struct{}{}
		msgs = append(msgs, &m)
	}
	return msgs, bad, nil
}

// MessageStore is a JSON file implementation of storage.MessageStore.
type MessageStore struct {
	mu          sync.RWMutex
	path        string
	data        map[int64]*domain.RawMessage
	quarantined []Quarantined
}

// NewMessageStore opens (or creates on first write) dir/messages.json.
func NewMessageStore(dir string, logger zerolog.Logger) (*MessageStore, error) {
	s := &MessageStore{
		path: filepath.Join(dir, MessagesFile),
		data: make(map[int64]*domain.RawMessage),
	}

	records, _, err := readRecords(s.path)
	if err != nil {
		return nil, err
	}
	msgs, bad, err := decodeMessageRecords(records)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		s.data[m.ID] = m
	}
	s.quarantined = bad
	logQuarantine(logger, MessagesFile, bad)

	return s, nil
}

// Quarantined returns the records skipped when the file was loaded.
func (s *MessageStore) Quarantined() []Quarantined {
	return s.quarantined
}

// Insert adds a new message. Returns ErrDuplicateKey if the id exists.
func (s *MessageStore) Insert(ctx context.Context, m *domain.RawMessage) error {
	return s.InsertBulk(ctx, []*domain.RawMessage{m})
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

	if err := s.flushLocked(); err != nil {
		for _, m := range msgs {
			delete(s.data, m.ID)
		}
		return err
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

func (s *MessageStore) flushLocked() error {
	out := make([]*domain.RawMessage, 0, len(s.data))
	for _, m := range s.data {
		out = append(out, m)
	}
	storage.SortMessages(out)
	return writeJSONAtomic(s.path, out)
}

var _ storage.MessageStore = (*MessageStore)(nil)
