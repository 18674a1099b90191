package postgres

import (
	"context"
	"fmt"

	"announcement-radar/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NotificationStore = (*NotificationStore)(nil)

// HasBeenSent reports whether the announcement was already delivered to the user.
func (s *NotificationStore) HasBeenSent(ctx context.Context, userID, announcementID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sent_notifications
			WHERE user_id = $1 AND announcement_id = $2
		)
	`
	var sent bool
	if err := s.pool.QueryRow(ctx, query, userID, announcementID).Scan(&sent); err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return sent, nil
}

// MarkSent records a delivery. Returns false if the pair was already recorded.
func (s *NotificationStore) MarkSent(ctx context.Context, userID, announcementID int64) (bool, error) {
	query := `
		INSERT INTO sent_notifications (user_id, announcement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, announcement_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, userID, announcementID)
	if err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
