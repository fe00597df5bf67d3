package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trade-lab/internal/config"
	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage/file"
)

func TestOpen_FileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.MessagesFile),
		[]byte(`[{"id":1,"date":1704067200000,"text":"Actual price: 100"},{"id":"bad"}]`), 0644))

	cfg := config.Default()
	cfg.Storage.DataDir = dir

	b, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Stats)
	assert.Len(t, b.Quarantined, 1)

	msg, err := b.Messages.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Actual price: 100", msg.Text)

	require.NoError(t, b.Stores().State.Save(ctx, &domain.PairingState{LastMessageID: 1}))
	_, err = os.Stat(filepath.Join(dir, file.PairingStateFile))
	assert.NoError(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewMemory(t *testing.T) {
	b := NewMemory()
	b.Close()
	b.Close()

	assert.NotNil(t, b.Stats)
	last, err := b.Messages.LastID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}
