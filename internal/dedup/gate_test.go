package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
	"announcement-radar/internal/storage/memory"
)

func normalized(url, title string, category domain.Category) *domain.NormalizedAnnouncement {
	return &domain.NormalizedAnnouncement{
		Exchange:    "binance",
		Title:       title,
		Type:        category,
		URL:         url,
		PublishTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Tokens:      []domain.TokenCandidate{{Name: "Foo", Symbol: "FOO"}},
	}
}

func TestGate_IdempotentInsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnnouncementStore()

	batch := []*domain.NormalizedAnnouncement{
		normalized("u1", "Foo listing", domain.CategoryNewListing),
		normalized("u1", "Foo listing", domain.CategoryFutures),
		normalized("u2", "Bar delisting", domain.CategoryDelisting),
	}

	run := func() int {
		gate := NewGate(store)
		if err := gate.Load(ctx); err != nil {
			t.Fatalf("Load: %v", err)
		}
		inserted := 0
		for _, n := range batch {
			_, ok, err := gate.Admit(ctx, n)
			if err != nil {
				t.Fatalf("Admit: %v", err)
			}
			if ok {
				inserted++
			}
		}
		return inserted
	}

	if got := run(); got != 3 {
		t.Fatalf("First run: expected 3 inserts, got %d", got)
	}
	if got := run(); got != 0 {
		t.Fatalf("Second run: expected 0 inserts, got %d", got)
	}

	all, err := store.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(all))
	}
}

func TestGate_WithinRunCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{AnnouncementStore: memory.NewAnnouncementStore()}
	gate := NewGate(store)
	if err := gate.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	n := normalized("u1", "Foo listing", domain.CategoryNewListing)

	first, inserted, err := gate.Admit(ctx, n)
	if err != nil || !inserted {
		t.Fatalf("Expected insert, got inserted=%v err=%v", inserted, err)
	}
	second, inserted, err := gate.Admit(ctx, n)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if inserted {
		t.Error("Second admit must not insert")
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("Expected cached row %d, got %+v", first.ID, second)
	}
	if store.creates != 1 {
		t.Errorf("Expected 1 store insert, got %d", store.creates)
	}
	if !gate.Seen("u1", "Foo listing") {
		t.Error("Inserted record must be marked seen")
	}
}

func TestGate_FilterUnseen(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnnouncementStore()
	if _, _, err := store.CreateIfAbsent(ctx, domain.FromNormalized(normalized("u1", "Old", domain.CategoryNewListing))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gate := NewGate(store)
	if err := gate.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gate.Len() != 1 {
		t.Fatalf("Expected 1 seen key, got %d", gate.Len())
	}

	raws := []*domain.RawAnnouncement{
		{Exchange: "binance", URL: "u1", Title: "Old"},
		{Exchange: "binance", URL: "u1", Title: "Old (updated)"},
		{Exchange: "okx", URL: "u2", Title: "New"},
		{Exchange: "okx", URL: "u2", Title: "New"},
		nil,
	}

	got := gate.FilterUnseen(raws)
	if len(got) != 2 {
		t.Fatalf("Expected 2 unseen raws, got %d", len(got))
	}
	if got[0].Title != "Old (updated)" || got[1].URL != "u2" {
		t.Errorf("Unexpected result order: %+v, %+v", got[0], got[1])
	}

	gate.MarkSeen("u2", "New")
	if len(gate.FilterUnseen(raws)) != 1 {
		t.Error("MarkSeen must exclude the raw from later filtering")
	}
}

func TestGate_DuplicateFromConcurrentCycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnnouncementStore()

	// Both gates load before either inserts.
	g1, g2 := NewGate(store), NewGate(store)
	if err := g1.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := g2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	n := normalized("u1", "Foo listing", domain.CategoryNewListing)
	row1, ok1, err := g1.Admit(ctx, n)
	if err != nil || !ok1 {
		t.Fatalf("g1 Admit: inserted=%v err=%v", ok1, err)
	}
	row2, ok2, err := g2.Admit(ctx, n)
	if err != nil {
		t.Fatalf("g2 Admit: %v", err)
	}
	if ok2 {
		t.Error("Concurrent duplicate must not insert")
	}
	if row2 == nil || row2.ID != row1.ID {
		t.Errorf("Expected existing row %d, got %+v", row1.ID, row2)
	}
}

func TestGate_StoreError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	gate := NewGate(&countingStore{AnnouncementStore: memory.NewAnnouncementStore(), err: boom})

	_, _, err := gate.Admit(ctx, normalized("u1", "t", domain.CategoryFutures))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected store error, got %v", err)
	}
}

type countingStore struct {
	storage.AnnouncementStore
	creates int
	err     error
}

func (s *countingStore) CreateIfAbsent(ctx context.Context, a *domain.Announcement) (*domain.Announcement, bool, error) {
	s.creates++
	if s.err != nil {
		return nil, false, s.err
	}
	return s.AnnouncementStore.CreateIfAbsent(ctx, a)
}
