package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// MessageStore implements storage.MessageStore using PostgreSQL.
type MessageStore struct {
	pool *Pool
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(pool *Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MessageStore = (*MessageStore)(nil)

const insertMessageQuery = `
	INSERT INTO raw_messages (id, message_time, text)
	VALUES ($1, $2, $3)
`

// Insert adds a new message. Returns ErrDuplicateKey if the id exists.
func (s *MessageStore) Insert(ctx context.Context, m *domain.RawMessage) error {
	if err := storage.ValidateMessage(m); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, insertMessageQuery, m.ID, m.Timestamp, m.Text)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertBulk adds multiple messages atomically. Fails entire batch on any duplicate.
func (s *MessageStore) InsertBulk(ctx context.Context, msgs []*domain.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		if err := storage.ValidateMessage(m); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(insertMessageQuery, m.ID, m.Timestamp, m.Text)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert messages in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a message by id. Returns ErrNotFound if not exists.
func (s *MessageStore) GetByID(ctx context.Context, id int64) (*domain.RawMessage, error) {
	query := `
		SELECT id, message_time, text
		FROM raw_messages
		WHERE id = $1
	`

	var m domain.RawMessage
	err := s.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Timestamp, &m.Text)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get message by id: %w", err)
	}
	return &m, nil
}

// GetAll retrieves the whole log ordered by id ASC.
func (s *MessageStore) GetAll(ctx context.Context) ([]*domain.RawMessage, error) {
	return s.GetAfter(ctx, 0)
}

// GetAfter retrieves messages with id > afterID ordered by id ASC.
func (s *MessageStore) GetAfter(ctx context.Context, afterID int64) ([]*domain.RawMessage, error) {
	query := `
		SELECT id, message_time, text
		FROM raw_messages
		WHERE id > $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, afterID)
	if err != nil {
		return nil, fmt.Errorf("get messages after %d: %w", afterID, err)
	}
	defer rows.Close()

	var result []*domain.RawMessage
	for rows.Next() {
		var m domain.RawMessage
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}

// LastID returns the highest stored id, or 0 for an empty log.
func (s *MessageStore) LastID(ctx context.Context) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM raw_messages`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("get last message id: %w", err)
	}
	return last, nil
}
