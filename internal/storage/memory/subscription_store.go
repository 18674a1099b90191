package memory

import (
	"context"
	"sort"
	"sync"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// SubscriptionStore is an in-memory implementation of storage.SubscriptionStore.
type SubscriptionStore struct {
	mu            sync.RWMutex
	nextUserID    int64
	nextSubID     int64
	users         map[int64]*domain.User
	byExternalID  map[int64]int64
	subscriptions map[int64]*domain.Subscription
}

// NewSubscriptionStore creates a new in-memory subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		users:         make(map[int64]*domain.User),
		byExternalID:  make(map[int64]int64),
		subscriptions: make(map[int64]*domain.Subscription),
	}
}

// InsertUser adds a user and assigns its id when zero.
func (s *SubscriptionStore) InsertUser(_ context.Context, u *domain.User) error {
	if u == nil || u.ExternalID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byExternalID[u.ExternalID]; exists {
		return storage.ErrDuplicateKey
	}
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if _, exists := s.users[u.ID]; exists {
		return storage.ErrDuplicateKey
	}

	userCopy := *u
	s.users[u.ID] = &userCopy
	s.byExternalID[u.ExternalID] = u.ID
	return nil
}

// Insert adds a subscription for an existing user and assigns its id.
func (s *SubscriptionStore) Insert(_ context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.UserID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[sub.UserID]; !exists {
		return storage.ErrNotFound
	}
	s.nextSubID++
	sub.ID = s.nextSubID

	subCopy := *sub
	s.subscriptions[sub.ID] = &subCopy
	return nil
}

// ListActiveUsers retrieves all active users, ordered by id ASC.
func (s *SubscriptionStore) ListActiveUsers(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.User
	for _, u := range s.users {
		if u.IsActive {
			userCopy := *u
			result = append(result, &userCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListActiveByUser retrieves active subscriptions of one user, ordered by id ASC.
func (s *SubscriptionStore) ListActiveByUser(_ context.Context, userID int64) ([]*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.IsActive {
			subCopy := *sub
			result = append(result, &subCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.SubscriptionStore = (*SubscriptionStore)(nil)
