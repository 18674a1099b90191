package memory

import (
	"context"
	"sort"
	"sync"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// ClassificationLogStore is an in-memory implementation of storage.ClassificationLogStore.
type ClassificationLogStore struct {
	mu      sync.RWMutex
	records []*domain.ClassificationRecord
}

// NewClassificationLogStore creates a new in-memory classification log store.
func NewClassificationLogStore() *ClassificationLogStore {
	return &ClassificationLogStore{}
}

// InsertBulk appends records.
func (s *ClassificationLogStore) InsertBulk(_ context.Context, records []*domain.ClassificationRecord) error {
	for _, r := range records {
		if r == nil || r.Exchange == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		recordCopy.Categories = append([]string(nil), r.Categories...)
		s.records = append(s.records, &recordCopy)
	}
	return nil
}

// GetByExchange retrieves records for an exchange, ordered by classified_at ASC.
func (s *ClassificationLogStore) GetByExchange(_ context.Context, exchange string) ([]*domain.ClassificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClassificationRecord
	for _, r := range s.records {
		if r.Exchange == exchange {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClassifiedAt.Before(result[j].ClassifiedAt)
	})
	return result, nil
}

// CountByStatus returns the number of records per status.
func (s *ClassificationLogStore) CountByStatus(_ context.Context) (map[domain.ClassificationStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.ClassificationStatus]int64)
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}

var _ storage.ClassificationLogStore = (*ClassificationLogStore)(nil)
