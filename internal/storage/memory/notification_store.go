package memory

import (
	"context"
	"sync"
	"time"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

type sentKey struct {
	userID         int64
	announcementID int64
}

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu   sync.RWMutex
	sent map[sentKey]*domain.SentNotification
	now  func() time.Time
}

// NewNotificationStore creates a new in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		sent: make(map[sentKey]*domain.SentNotification),
		now:  time.Now,
	}
}

// HasBeenSent reports whether the announcement was already delivered to the user.
func (s *NotificationStore) HasBeenSent(_ context.Context, userID, announcementID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.sent[sentKey{userID, announcementID}]
	return exists, nil
}

// MarkSent records a delivery. Returns false if the pair was already recorded.
func (s *NotificationStore) MarkSent(_ context.Context, userID, announcementID int64) (bool, error) {
	if userID == 0 || announcementID == 0 {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sentKey{userID, announcementID}
	if _, exists := s.sent[key]; exists {
		return false, nil
	}
	s.sent[key] = &domain.SentNotification{
		UserID:         userID,
		AnnouncementID: announcementID,
		SentAt:         s.now(),
	}
	return true, nil
}

// Count returns the number of recorded deliveries.
func (s *NotificationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sent)
}

var _ storage.NotificationStore = (*NotificationStore)(nil)
