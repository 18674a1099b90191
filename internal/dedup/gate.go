// Package dedup decides which announcements are new before and after classification.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/idhash"
	"announcement-radar/internal/storage"
)

// Gate tracks already-processed articles for one poll cycle.
//
// The (url, title) seen set skips titles before any AI call. The (url, type)
// admitted cache avoids repeated inserts within the run. The store's unique
// constraint on (url, type) stays the final arbiter, so concurrent cycles with
// their own gates cannot create duplicate rows.
type Gate struct {
	store storage.AnnouncementStore

	mu       sync.Mutex
	seen     map[string]struct{}
	admitted map[string]*domain.Announcement
}

// NewGate creates a new Gate. Call Load before filtering.
func NewGate(store storage.AnnouncementStore) *Gate {
	return &Gate{
		store:    store,
		seen:     make(map[string]struct{}),
		admitted: make(map[string]*domain.Announcement),
	}
}

// Load rebuilds the seen set from every stored announcement and clears the run cache.
func (g *Gate) Load(ctx context.Context) error {
	rows, err := g.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load announcements: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	for _, a := range rows {
		seen[idhash.ComputeSeenKey(a.URL, a.Title)] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = seen
	g.admitted = make(map[string]*domain.Announcement)
	return nil
}

// Len returns the size of the seen set.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Seen reports whether the (url, title) pair was already processed.
func (g *Gate) Seen(url, title string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[idhash.ComputeSeenKey(url, title)]
	return ok
}

// FilterUnseen drops raws already seen and collapses repeats within the batch,
// keeping the first occurrence. Input order is preserved.
func (g *Gate) FilterUnseen(raws []*domain.RawAnnouncement) []*domain.RawAnnouncement {
	g.mu.Lock()
	defer g.mu.Unlock()

	batch := make(map[string]struct{}, len(raws))
	var result []*domain.RawAnnouncement
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		key := idhash.ComputeSeenKey(raw.URL, raw.Title)
		if _, ok := g.seen[key]; ok {
			continue
		}
		if _, ok := batch[key]; ok {
			continue
		}
		batch[key] = struct{}{}
		result = append(result, raw)
	}
	return result
}

// Admit inserts the record unless its (url, type) already exists.
// Returns the stored row and inserted=true on insert. A duplicate returns the
// existing row when it can be read, and inserted=false.
func (g *Gate) Admit(ctx context.Context, n *domain.NormalizedAnnouncement) (*domain.Announcement, bool, error) {
	key := idhash.ComputeAnnouncementKey(n.URL, n.Type)

	g.mu.Lock()
	if row, ok := g.admitted[key]; ok {
		g.mu.Unlock()
		return row, false, nil
	}
	g.mu.Unlock()

	row, inserted, err := g.store.CreateIfAbsent(ctx, domain.FromNormalized(n))
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Race with a concurrent cycle.
			inserted = false
		} else {
			return nil, false, fmt.Errorf("insert announcement: %w", err)
		}
	}

	if !inserted {
		existing, err := g.store.GetByKey(ctx, n.URL, n.Type)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, false, fmt.Errorf("get existing announcement: %w", err)
		}
		row = existing
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if row != nil {
		g.admitted[key] = row
	}
	if inserted {
		g.seen[idhash.ComputeSeenKey(n.URL, n.Title)] = struct{}{}
	}
	return row, inserted, nil
}

// MarkSeen records a raw as fully processed.
func (g *Gate) MarkSeen(url, title string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[idhash.ComputeSeenKey(url, title)] = struct{}{}
}
