package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/idhash"
	"announcement-radar/internal/storage"
)

// AnnouncementStore is an in-memory implementation of storage.AnnouncementStore.
type AnnouncementStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Announcement
	byKey  map[string]int64 // keyed by (url, type)
	now    func() time.Time
}

// NewAnnouncementStore creates a new in-memory announcement store.
func NewAnnouncementStore() *AnnouncementStore {
	return &AnnouncementStore{
		byID:  make(map[int64]*domain.Announcement),
		byKey: make(map[string]int64),
		now:   time.Now,
	}
}

// CreateIfAbsent inserts the announcement unless (url, type) already exists.
func (s *AnnouncementStore) CreateIfAbsent(_ context.Context, a *domain.Announcement) (*domain.Announcement, bool, error) {
	if a == nil || a.URL == "" || a.Type == "" {
		return nil, false, storage.ErrInvalidInput
	}

	key := idhash.ComputeAnnouncementKey(a.URL, a.Type)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[key]; exists {
		return nil, false, nil
	}

	s.nextID++
	stored := copyAnnouncement(a)
	stored.ID = s.nextID
	stored.CreatedAt = s.now()
	s.byID[stored.ID] = stored
	s.byKey[key] = stored.ID

	return copyAnnouncement(stored), true, nil
}

// FindAll retrieves every announcement, ordered by id ASC.
func (s *AnnouncementStore) FindAll(_ context.Context) ([]*domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Announcement, 0, len(s.byID))
	for _, a := range s.byID {
		result = append(result, copyAnnouncement(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetByID retrieves an announcement by id. Returns ErrNotFound if not exists.
func (s *AnnouncementStore) GetByID(_ context.Context, id int64) (*domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyAnnouncement(a), nil
}

// GetByKey retrieves an announcement by (url, type). Returns ErrNotFound if not exists.
func (s *AnnouncementStore) GetByKey(_ context.Context, url string, category domain.Category) (*domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byKey[idhash.ComputeAnnouncementKey(url, category)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyAnnouncement(s.byID[id]), nil
}

// ListRecent retrieves the newest announcements, ordered by publish_time DESC.
func (s *AnnouncementStore) ListRecent(_ context.Context, category domain.Category, limit int) ([]*domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Announcement
	for _, a := range s.byID {
		if category != "" && a.Type != category {
			continue
		}
		result = append(result, copyAnnouncement(a))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PublishTime.Equal(result[j].PublishTime) {
			return result[i].PublishTime.After(result[j].PublishTime)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// copyAnnouncement deep-copies the token slice to prevent external mutation.
func copyAnnouncement(a *domain.Announcement) *domain.Announcement {
	c := *a
	c.Tokens = make([]domain.TokenCandidate, len(a.Tokens))
	copy(c.Tokens, a.Tokens)
	return &c
}

// Verify interface compliance at compile time.
var _ storage.AnnouncementStore = (*AnnouncementStore)(nil)
