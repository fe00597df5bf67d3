// Package feed provides the message sources: bulk exports read from disk and
// the live websocket stream.
package feed

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage/file"
)

// Source provides a finite batch of messages, e.g. a channel export.
type Source interface {
	// Fetch returns the messages of the source. Order is not guaranteed;
	// consumers sort by id.
	Fetch(ctx context.Context) ([]*domain.RawMessage, error)
}

// Stream provides live messages until the context is cancelled.
type Stream interface {
	// Subscribe returns a channel of messages. The channel is closed when
	// ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan *domain.RawMessage, error)
}

// FileSource reads a JSON array export of messages. Malformed records are
// skipped and kept in Quarantined.
type FileSource struct {
	path   string
	logger zerolog.Logger

	Quarantined []file.Quarantined
}

// NewFileSource creates a source over the export at path.
func NewFileSource(path string, logger zerolog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Fetch reads and decodes the export.
func (s *FileSource) Fetch(ctx context.Context) ([]*domain.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	msgs, bad, err := file.DecodeMessages(data)
	if err != nil {
		return nil, fmt.Errorf("decode export %s: %w", s.path, err)
	}

	s.Quarantined = bad
	for _, q := range bad {
		s.logger.Warn().Str("export", s.path).Int("index", q.Index).Err(q.Err).Msg("skipping malformed message")
	}
	return msgs, nil
}

// SliceSource serves a fixed set of messages.
type SliceSource []*domain.RawMessage

// Fetch returns copies of the messages.
func (s SliceSource) Fetch(_ context.Context) ([]*domain.RawMessage, error) {
	out := make([]*domain.RawMessage, len(s))
	for i, m := range s {
		copy := *m
		out[i] = &copy
	}
	return out, nil
}

var (
	_ Source = (*FileSource)(nil)
	_ Source = SliceSource(nil)
	_ Stream = (*WSSource)(nil)
)
