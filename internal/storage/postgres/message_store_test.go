package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

func TestMessageStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMessageStore(pool)
	ctx := context.Background()

	msg := &domain.RawMessage{ID: 101, Timestamp: 1704067200000, Text: "✅ Price is up to 50500"}
	require.NoError(t, store.Insert(ctx, msg))

	retrieved, err := store.GetByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, *msg, *retrieved)

	err = store.Insert(ctx, msg)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMessageStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMessageStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.RawMessage{ID: 2, Timestamp: 2000}))

	// Batch containing an existing id fails entirely
	err := store.InsertBulk(ctx, []*domain.RawMessage{
		{ID: 1, Timestamp: 1000, Text: "a"},
		{ID: 2, Timestamp: 2000, Text: "dup"},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound, "batch must be rolled back")

	require.NoError(t, store.InsertBulk(ctx, []*domain.RawMessage{
		{ID: 3, Timestamp: 3000, Text: "c"},
		{ID: 1, Timestamp: 1000, Text: "a"},
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})

	after, err := store.GetAfter(ctx, 2)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(3), after[0].ID)

	last, err := store.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

func TestMessageStore_LastIDEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	last, err := NewMessageStore(pool).LastID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}
