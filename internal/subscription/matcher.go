// Package subscription matches announcements against user subscription filters.
package subscription

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"announcement-radar/internal/cache"
	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// DefaultCacheTTL is how long a user's active subscriptions are cached.
const DefaultCacheTTL = 5 * time.Minute

// Matcher decides whether a user should receive an announcement.
type Matcher struct {
	store storage.SubscriptionStore
	cache cache.Cache
	ttl   time.Duration
}

// NewMatcher creates a Matcher. A nil cache reads the store on every call.
func NewMatcher(store storage.SubscriptionStore, c cache.Cache, ttl time.Duration) *Matcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Matcher{store: store, cache: c, ttl: ttl}
}

// Match reports whether any active subscription of the user accepts ann.
// Uncategorized announcements never match.
func (m *Matcher) Match(ctx context.Context, userID int64, ann *domain.NormalizedAnnouncement) (bool, error) {
	if ann == nil || ann.Type == domain.CategoryUncategorized {
		return false, nil
	}

	subs, err := m.subscriptions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if Matches(sub, ann) {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached subscriptions of a user.
func (m *Matcher) Invalidate(ctx context.Context, userID int64) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Delete(ctx, cacheKey(userID))
}

func (m *Matcher) subscriptions(ctx context.Context, userID int64) ([]*domain.Subscription, error) {
	key := cacheKey(userID)
	if m.cache != nil {
		// Cache failures fall through to the store.
		if subs, ok, err := cache.GetJSON[[]*domain.Subscription](ctx, m.cache, key); err == nil && ok {
			return subs, nil
		}
	}

	subs, err := m.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions of user %d: %w", userID, err)
	}

	if m.cache != nil {
		_ = cache.SetJSON(ctx, m.cache, key, subs, m.ttl)
	}
	return subs, nil
}

func cacheKey(userID int64) string {
	return cache.Key("subscriptions", strconv.FormatInt(userID, 10))
}

// Matches applies one subscription filter. Uncategorized never matches.
func Matches(sub *domain.Subscription, ann *domain.NormalizedAnnouncement) bool {
	if sub == nil || ann == nil || !sub.IsActive {
		return false
	}
	if ann.Type == domain.CategoryUncategorized {
		return false
	}
	if !wildcardEqual(sub.Exchange, ann.Exchange) {
		return false
	}
	if !wildcardEqual(sub.AnnouncementType, string(ann.Type)) {
		return false
	}
	return tokenFilterMatches(sub.TokenFilter, ann.Tokens)
}

func wildcardEqual(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" || strings.EqualFold(filter, domain.All) {
		return true
	}
	return strings.EqualFold(filter, strings.TrimSpace(value))
}

// tokenFilterMatches accepts a comma separated list of symbols or names.
func tokenFilterMatches(filter string, tokens []domain.TokenCandidate) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	for _, want := range strings.Split(filter, ",") {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, t := range tokens {
			if strings.EqualFold(want, t.Symbol) || strings.EqualFold(want, t.Name) {
				return true
			}
		}
	}
	return false
}
