package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// PairingStateStore implements storage.PairingStateStore as a single-row table.
type PairingStateStore struct {
	pool *Pool
}

// NewPairingStateStore creates a new PairingStateStore.
func NewPairingStateStore(pool *Pool) *PairingStateStore {
	return &PairingStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PairingStateStore = (*PairingStateStore)(nil)

// Load returns the last saved state. Returns ErrNotFound if never saved.
func (s *PairingStateStore) Load(ctx context.Context) (*domain.PairingState, error) {
	query := `
		SELECT pending_price::text, pending_time, pending_message_id, last_message_id
		FROM pairing_state
		WHERE id = 1
	`

	var (
		price     *string
		pTime     *int64
		messageID *int64
		st        domain.PairingState
	)
	err := s.pool.QueryRow(ctx, query).Scan(&price, &pTime, &messageID, &st.LastMessageID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load pairing state: %w", err)
	}

	if price != nil && messageID != nil {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("pairing state pending_price: %w", err)
		}
		st.Pending = &domain.PendingEntry{Price: p, MessageID: *messageID}
		if pTime != nil {
			st.Pending.Time = *pTime
		}
	}
	return &st, nil
}

// Save overwrites the stored state.
func (s *PairingStateStore) Save(ctx context.Context, state *domain.PairingState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pairing_state (id, pending_price, pending_time, pending_message_id, last_message_id, updated_at)
		VALUES (1, $1::numeric, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			pending_price      = EXCLUDED.pending_price,
			pending_time       = EXCLUDED.pending_time,
			pending_message_id = EXCLUDED.pending_message_id,
			last_message_id    = EXCLUDED.last_message_id,
			updated_at         = EXCLUDED.updated_at
	`

	var (
		price     *string
		pTime     *int64
		messageID *int64
	)
	if p := state.Pending; p != nil {
		str := p.Price.String()
		price, pTime, messageID = &str, &p.Time, &p.MessageID
	}

	if _, err := s.pool.Exec(ctx, query, price, pTime, messageID, state.LastMessageID); err != nil {
		return fmt.Errorf("save pairing state: %w", err)
	}
	return nil
}
