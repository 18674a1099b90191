package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Token
	links  map[int64]map[int64]struct{} // announcement_id -> token ids
	now    func() time.Time
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byID:  make(map[int64]*domain.Token),
		links: make(map[int64]map[int64]struct{}),
		now:   time.Now,
	}
}

// FindOrCreate resolves a token identity, creating the row on first sighting.
func (s *TokenStore) FindOrCreate(_ context.Context, name, symbol string, announcementID int64) (*domain.Token, error) {
	name, symbol = storage.NormalizeTokenIdentity(name, symbol)
	if name == "" && symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.resolve(name, symbol); t != nil {
		tokenCopy := *t
		return &tokenCopy, nil
	}

	s.nextID++
	t := &domain.Token{
		ID:                  s.nextID,
		Name:                name,
		Symbol:              symbol,
		FirstAnnouncementID: announcementID,
		CreatedAt:           s.now(),
	}
	s.byID[t.ID] = t

	tokenCopy := *t
	return &tokenCopy, nil
}

// resolve applies the token identity rule and reconciles partial rows in place.
// Caller must hold the write lock.
func (s *TokenStore) resolve(name, symbol string) *domain.Token {
	tokens := s.sortedLocked()

	if name == "" {
		// Symbol only: newest row carrying the symbol.
		for i := len(tokens) - 1; i >= 0; i-- {
			if tokens[i].Symbol == symbol {
				return tokens[i]
			}
		}
		return nil
	}

	var sameName []*domain.Token
	for _, t := range tokens {
		if strings.EqualFold(t.Name, name) {
			sameName = append(sameName, t)
		}
	}

	for _, t := range sameName {
		if t.Symbol == symbol {
			return t
		}
	}
	if symbol == "" && len(sameName) > 0 {
		return sameName[0]
	}
	for _, t := range sameName {
		if t.Symbol == "" {
			t.Symbol = symbol
			return t
		}
	}

	// Adopt a symbol-only row announced earlier.
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Name == "" && tokens[i].Symbol == symbol {
			tokens[i].Name = name
			return tokens[i]
		}
	}
	return nil
}

func (s *TokenStore) sortedLocked() []*domain.Token {
	tokens := make([]*domain.Token, 0, len(s.byID))
	for _, t := range s.byID {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ID < tokens[j].ID
	})
	return tokens
}

// Link records that the announcement mentions the token.
func (s *TokenStore) Link(_ context.Context, announcementID, tokenID int64) error {
	if announcementID == 0 || tokenID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[tokenID]; !exists {
		return storage.ErrNotFound
	}
	if s.links[announcementID] == nil {
		s.links[announcementID] = make(map[int64]struct{})
	}
	s.links[announcementID][tokenID] = struct{}{}
	return nil
}

// GetByAnnouncementID retrieves tokens linked to an announcement, ordered by id ASC.
func (s *TokenStore) GetByAnnouncementID(_ context.Context, announcementID int64) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for tokenID := range s.links[announcementID] {
		tokenCopy := *s.byID[tokenID]
		result = append(result, &tokenCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetBySymbol retrieves all tokens with the given symbol, newest first.
func (s *TokenStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Token, error) {
	_, symbol = storage.NormalizeTokenIdentity("", symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.byID {
		if t.Symbol == symbol {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
