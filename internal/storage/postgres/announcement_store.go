package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// AnnouncementStore implements storage.AnnouncementStore using PostgreSQL.
type AnnouncementStore struct {
	pool *Pool
}

// NewAnnouncementStore creates a new AnnouncementStore.
func NewAnnouncementStore(pool *Pool) *AnnouncementStore {
	return &AnnouncementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnnouncementStore = (*AnnouncementStore)(nil)

const announcementColumns = `id, exchange, title, description, type, url, publish_time, token_info, created_at`

// CreateIfAbsent inserts the announcement unless (url, type) already exists.
func (s *AnnouncementStore) CreateIfAbsent(ctx context.Context, a *domain.Announcement) (*domain.Announcement, bool, error) {
	if a == nil || a.URL == "" || a.Type == "" {
		return nil, false, storage.ErrInvalidInput
	}

	tokens := a.Tokens
	if tokens == nil {
		tokens = []domain.TokenCandidate{}
	}
	tokenInfo, err := json.Marshal(tokens)
	if err != nil {
		return nil, false, fmt.Errorf("marshal token info: %w", err)
	}

	query := `
		INSERT INTO announcements (
			exchange, title, description, type, url, publish_time, token_info
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url, type) DO NOTHING
		RETURNING ` + announcementColumns

	row := s.pool.QueryRow(ctx, query,
		a.Exchange,
		a.Title,
		a.Description,
		string(a.Type),
		a.URL,
		a.PublishTime,
		tokenInfo,
	)
	created, err := scanAnnouncement(row)
	if err != nil {
		if isNotFoundError(err) {
			// Conflict: the row already exists.
			return nil, false, nil
		}
		if isDuplicateKeyError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert announcement: %w", err)
	}
	return created, true, nil
}

// FindAll retrieves every announcement, ordered by id ASC.
func (s *AnnouncementStore) FindAll(ctx context.Context) ([]*domain.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find all announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

// GetByID retrieves an announcement by id. Returns ErrNotFound if not exists.
func (s *AnnouncementStore) GetByID(ctx context.Context, id int64) (*domain.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`

	a, err := scanAnnouncement(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get announcement by id: %w", err)
	}
	return a, nil
}

// GetByKey retrieves an announcement by (url, type). Returns ErrNotFound if not exists.
func (s *AnnouncementStore) GetByKey(ctx context.Context, url string, category domain.Category) (*domain.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE url = $1 AND type = $2`

	a, err := scanAnnouncement(s.pool.QueryRow(ctx, query, url, string(category)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get announcement by key: %w", err)
	}
	return a, nil
}

// ListRecent retrieves the newest announcements, ordered by publish_time DESC.
// A non-positive limit returns every matching row.
func (s *AnnouncementStore) ListRecent(ctx context.Context, category domain.Category, limit int) ([]*domain.Announcement, error) {
	query := `
		SELECT ` + announcementColumns + `
		FROM announcements
		WHERE ($1 = '' OR type = $1)
		ORDER BY publish_time DESC, id DESC
		LIMIT NULLIF($2, 0)
	`
	if limit < 0 {
		limit = 0
	}

	rows, err := s.pool.Query(ctx, query, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

func collectAnnouncements(rows pgx.Rows) ([]*domain.Announcement, error) {
	defer rows.Close()

	var result []*domain.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcements: %w", err)
	}
	return result, nil
}

// scanAnnouncement scans a single row into Announcement.
func scanAnnouncement(row pgx.Row) (*domain.Announcement, error) {
	var (
		a         domain.Announcement
		category  string
		tokenInfo []byte
	)

	err := row.Scan(
		&a.ID,
		&a.Exchange,
		&a.Title,
		&a.Description,
		&category,
		&a.URL,
		&a.PublishTime,
		&tokenInfo,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = domain.Category(category)
	a.Tokens = []domain.TokenCandidate{}
	if len(tokenInfo) > 0 {
		if err := json.Unmarshal(tokenInfo, &a.Tokens); err != nil {
			return nil, fmt.Errorf("unmarshal token info: %w", err)
		}
	}
	return &a, nil
}
