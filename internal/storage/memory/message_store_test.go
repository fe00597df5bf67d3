package memory

import (
	"context"
	"errors"
	"testing"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

func TestMessageStore_InsertBulkAndQuery(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()

	msgs := []*domain.RawMessage{
		{ID: 30, Timestamp: 3000, Text: "c"},
		{ID: 10, Timestamp: 1000, Text: "a"},
		{ID: 20, Timestamp: 2000},
	}
	if err := store.InsertBulk(ctx, msgs); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != 10 || all[1].ID != 20 || all[2].ID != 30 {
		t.Fatalf("GetAll not ordered by id: %+v", all)
	}

	after, err := store.GetAfter(ctx, 10)
	if err != nil {
		t.Fatalf("GetAfter failed: %v", err)
	}
	if len(after) != 2 || after[0].ID != 20 {
		t.Errorf("GetAfter(10) = %+v", after)
	}

	last, err := store.LastID(ctx)
	if err != nil {
		t.Fatalf("LastID failed: %v", err)
	}
	if last != 30 {
		t.Errorf("LastID = %d, want 30", last)
	}

	got, err := store.GetByID(ctx, 10)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Text != "a" {
		t.Errorf("Text = %q, want a", got.Text)
	}
}

func TestMessageStore_BulkIsAtomic(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.RawMessage{ID: 2}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.RawMessage{{ID: 1}, {ID: 2}, {ID: 3}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("batch must not be partially applied, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.RawMessage{{ID: 5}, {ID: 5}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("intra-batch duplicate: expected ErrDuplicateKey, got %v", err)
	}
}

func TestMessageStore_EmptyLog(t *testing.T) {
	store := NewMessageStore()
	ctx := context.Background()

	last, err := store.LastID(ctx)
	if err != nil || last != 0 {
		t.Errorf("LastID on empty log = %d, %v", last, err)
	}
	if _, err := store.GetByID(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.RawMessage{ID: 0}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("id 0: expected ErrInvalidInput, got %v", err)
	}
}

func TestPairingStateStore(t *testing.T) {
	store := NewPairingStateStore()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before first save, got %v", err)
	}

	state := &domain.PairingState{
		Pending:       &domain.PendingEntry{Time: 1000, MessageID: 4},
		LastMessageID: 4,
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// mutate after save; stored copy must not change
	state.Pending.MessageID = 99

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Pending == nil || got.Pending.MessageID != 4 || got.LastMessageID != 4 {
		t.Errorf("Load = %+v", got)
	}
}
