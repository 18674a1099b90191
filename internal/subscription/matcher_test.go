package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"announcement-radar/internal/cache"
	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage/memory"
)

func announcement(exchange string, category domain.Category, tokens ...domain.TokenCandidate) *domain.NormalizedAnnouncement {
	return &domain.NormalizedAnnouncement{
		Exchange: exchange,
		Title:    "title",
		Type:     category,
		URL:      "u1",
		Tokens:   tokens,
	}
}

func seedUser(t *testing.T, store *memory.SubscriptionStore, subs ...*domain.Subscription) int64 {
	t.Helper()
	ctx := context.Background()

	u := &domain.User{ExternalID: time.Now().UnixNano(), IsActive: true}
	require.NoError(t, store.InsertUser(ctx, u))
	for _, s := range subs {
		s.UserID = u.ID
		require.NoError(t, store.Insert(ctx, s))
	}
	return u.ID
}

func TestMatches(t *testing.T) {
	foo := domain.TokenCandidate{Name: "Foo Network", Symbol: "FOO"}

	tests := []struct {
		name string
		sub  domain.Subscription
		ann  *domain.NormalizedAnnouncement
		want bool
	}{
		{"all wildcard", domain.Subscription{Exchange: "all", AnnouncementType: "all", IsActive: true}, announcement("binance", domain.CategoryNewListing), true},
		{"exchange case-insensitive", domain.Subscription{Exchange: "Binance", AnnouncementType: "all", IsActive: true}, announcement("binance", domain.CategoryFutures), true},
		{"exchange mismatch", domain.Subscription{Exchange: "okx", AnnouncementType: "all", IsActive: true}, announcement("binance", domain.CategoryFutures), false},
		{"type mismatch", domain.Subscription{Exchange: "all", AnnouncementType: "delisting", IsActive: true}, announcement("binance", domain.CategoryFutures), false},
		{"token symbol", domain.Subscription{Exchange: "all", AnnouncementType: "all", TokenFilter: "bar, foo", IsActive: true}, announcement("okx", domain.CategoryNewListing, foo), true},
		{"token name", domain.Subscription{Exchange: "all", AnnouncementType: "all", TokenFilter: "foo network", IsActive: true}, announcement("okx", domain.CategoryNewListing, foo), true},
		{"token miss", domain.Subscription{Exchange: "all", AnnouncementType: "all", TokenFilter: "BAR", IsActive: true}, announcement("okx", domain.CategoryNewListing, foo), false},
		{"inactive", domain.Subscription{Exchange: "all", AnnouncementType: "all", IsActive: false}, announcement("okx", domain.CategoryNewListing), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			assert.Equal(t, tt.want, Matches(&sub, tt.ann))
		})
	}
}

func TestMatcher_UncategorizedNeverMatches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSubscriptionStore()
	userID := seedUser(t, store,
		&domain.Subscription{Exchange: "all", AnnouncementType: "all", IsActive: true},
		&domain.Subscription{Exchange: "binance", AnnouncementType: "uncategorized", IsActive: true},
	)
	m := NewMatcher(store, nil, 0)

	ok, err := m.Match(ctx, userID, announcement("binance", domain.CategoryUncategorized, domain.TokenCandidate{Symbol: "FOO"}))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Match(ctx, userID, announcement("binance", domain.CategoryNewListing))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatcher_CachesSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSubscriptionStore()
	userID := seedUser(t, store, &domain.Subscription{Exchange: "okx", AnnouncementType: "all", IsActive: true})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewMemoryCache(func() time.Time { return now })
	m := NewMatcher(store, c, time.Minute)

	ok, err := m.Match(ctx, userID, announcement("binance", domain.CategoryNewListing))
	require.NoError(t, err)
	assert.False(t, ok)

	// New subscription is invisible until the cache expires or is invalidated.
	require.NoError(t, store.Insert(ctx, &domain.Subscription{UserID: userID, Exchange: "binance", AnnouncementType: "all", IsActive: true}))
	ok, err = m.Match(ctx, userID, announcement("binance", domain.CategoryNewListing))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Invalidate(ctx, userID))
	ok, err = m.Match(ctx, userID, announcement("binance", domain.CategoryNewListing))
	require.NoError(t, err)
	assert.True(t, ok)
}
