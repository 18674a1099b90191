package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// SubscriptionStore implements storage.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	pool *Pool
}

// NewSubscriptionStore creates a new SubscriptionStore.
func NewSubscriptionStore(pool *Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubscriptionStore = (*SubscriptionStore)(nil)

// InsertUser adds a user. Returns ErrDuplicateKey if external_id exists.
func (s *SubscriptionStore) InsertUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.ExternalID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (external_id, username, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, u.ExternalID, u.Username, u.IsActive).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Insert adds a subscription for an existing user.
func (s *SubscriptionStore) Insert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.UserID == 0 {
		return storage.ErrInvalidInput
	}

	exchange := sub.Exchange
	if exchange == "" {
		exchange = domain.All
	}
	annType := sub.AnnouncementType
	if annType == "" {
		annType = domain.All
	}

	query := `
		INSERT INTO subscriptions (user_id, exchange, announcement_type, token_filter, is_active)
		SELECT id, $2, $3, $4, $5 FROM users WHERE id = $1
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, sub.UserID, exchange, annType, sub.TokenFilter, sub.IsActive).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.Exchange = exchange
	sub.AnnouncementType = annType
	return nil
}

// ListActiveUsers retrieves all active users, ordered by id ASC.
func (s *SubscriptionStore) ListActiveUsers(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, external_id, username, is_active, created_at
		FROM users
		WHERE is_active
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var result []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Username, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

// ListActiveByUser retrieves active subscriptions of one user, ordered by id ASC.
func (s *SubscriptionStore) ListActiveByUser(ctx context.Context, userID int64) ([]*domain.Subscription, error) {
	query := `
		SELECT id, user_id, exchange, announcement_type, token_filter, is_active, created_at
		FROM subscriptions
		WHERE user_id = $1 AND is_active
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return result, nil
}

// scanSubscription scans a single row into Subscription.
func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Exchange,
		&sub.AnnouncementType,
		&sub.TokenFilter,
		&sub.IsActive,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
