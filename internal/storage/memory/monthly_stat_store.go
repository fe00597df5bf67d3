package memory

import (
	"context"
	"sort"
	"sync"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

// MonthlyStatStore is an in-memory implementation of storage.MonthlyStatStore.
type MonthlyStatStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.MonthlyStat // keyed by run_id
}

// NewMonthlyStatStore creates a new in-memory monthly statistics store.
func NewMonthlyStatStore() *MonthlyStatStore {
	return &MonthlyStatStore{
		data: make(map[string][]*domain.MonthlyStat),
	}
}

// InsertBulk stores one or more runs atomically. Fails entire batch if any run exists
// or a (run_id, month_key) pair repeats within the batch.
func (s *MonthlyStatStore) InsertBulk(_ context.Context, stats []*domain.MonthlyStat) error {
	if len(stats) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(stats))
	for _, st := range stats {
		if st == nil || st.RunID == "" || st.Bucket.MonthKey == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[st.RunID]; exists {
			return storage.ErrDuplicateKey
		}
		key := st.RunID + "|" + st.Bucket.MonthKey
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, st := range stats {
		copy := *st
		s.data[st.RunID] = append(s.data[st.RunID], &copy)
	}

	return nil
}

// GetByRun retrieves a run's buckets ordered by month_key ASC.
func (s *MonthlyStatStore) GetByRun(_ context.Context, runID string) ([]*domain.MonthlyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MonthlyStat
	for _, st := range s.data[runID] {
		copy := *st
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Bucket.MonthKey < result[j].Bucket.MonthKey
	})
	return result, nil
}

// GetByMonth retrieves every run's bucket for a month, ordered by generated_at ASC.
func (s *MonthlyStatStore) GetByMonth(_ context.Context, monthKey string) ([]*domain.MonthlyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MonthlyStat
	for _, stats := range s.data {
		for _, st := range stats {
			if st.Bucket.MonthKey == monthKey {
				copy := *st
				result = append(result, &copy)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GeneratedAt != result[j].GeneratedAt {
			return result[i].GeneratedAt < result[j].GeneratedAt
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

var _ storage.MonthlyStatStore = (*MonthlyStatStore)(nil)
