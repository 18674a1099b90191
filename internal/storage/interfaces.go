package storage

import (
	"context"

	"announcement-radar/internal/domain"
)

// AnnouncementStore provides access to announcements storage.
type AnnouncementStore interface {
	// CreateIfAbsent inserts the announcement unless (url, type) already exists.
	// Returns the stored row and inserted=true on insert; on conflict returns
	// nil, false, nil (insert-or-ignore).
	CreateIfAbsent(ctx context.Context, a *domain.Announcement) (*domain.Announcement, bool, error)

	// FindAll retrieves every announcement, ordered by id ASC.
	FindAll(ctx context.Context) ([]*domain.Announcement, error)

	// GetByID retrieves an announcement by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Announcement, error)

	// GetByKey retrieves an announcement by (url, type). Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, url string, category domain.Category) (*domain.Announcement, error)

	// ListRecent retrieves the newest announcements, optionally filtered by type
	// (empty category means all), ordered by publish_time DESC.
	ListRecent(ctx context.Context, category domain.Category, limit int) ([]*domain.Announcement, error)
}

// TokenStore provides access to tokens and announcement_tokens storage.
type TokenStore interface {
	// FindOrCreate resolves a token identity, creating the row on first sighting.
	// Returns ErrInvalidInput if both name and symbol are empty.
	FindOrCreate(ctx context.Context, name, symbol string, announcementID int64) (*domain.Token, error)

	// Link records that the announcement mentions the token. Existing links are a no-op.
	Link(ctx context.Context, announcementID, tokenID int64) error

	// GetByAnnouncementID retrieves tokens linked to an announcement, ordered by id ASC.
	GetByAnnouncementID(ctx context.Context, announcementID int64) ([]*domain.Token, error)

	// GetBySymbol retrieves all tokens with the given symbol, newest first.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Token, error)
}

// NotificationStore provides access to sent_notifications storage.
type NotificationStore interface {
	// HasBeenSent reports whether the announcement was already delivered to the user.
	HasBeenSent(ctx context.Context, userID, announcementID int64) (bool, error)

	// MarkSent records a delivery. Returns false if the pair was already recorded.
	MarkSent(ctx context.Context, userID, announcementID int64) (bool, error)
}

// SubscriptionStore provides read access to users and subscriptions.
type SubscriptionStore interface {
	// InsertUser adds a user. Returns ErrDuplicateKey if external_id exists.
	InsertUser(ctx context.Context, u *domain.User) error

	// Insert adds a subscription for an existing user.
	Insert(ctx context.Context, s *domain.Subscription) error

	// ListActiveUsers retrieves all active users, ordered by id ASC.
	ListActiveUsers(ctx context.Context) ([]*domain.User, error)

	// ListActiveByUser retrieves active subscriptions of one user, ordered by id ASC.
	ListActiveByUser(ctx context.Context, userID int64) ([]*domain.Subscription, error)
}

// ClassificationLogStore provides access to the append-only classification_log.
type ClassificationLogStore interface {
	// InsertBulk appends records.
	InsertBulk(ctx context.Context, records []*domain.ClassificationRecord) error

	// GetByExchange retrieves records for an exchange, ordered by classified_at ASC.
	GetByExchange(ctx context.Context, exchange string) ([]*domain.ClassificationRecord, error)

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[domain.ClassificationStatus]int64, error)
}
