package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `id, name, symbol, COALESCE(first_announcement_id, 0), created_at`

// FindOrCreate resolves a token identity, creating the row on first sighting.
// A concurrent insert of the same identity is retried once.
func (s *TokenStore) FindOrCreate(ctx context.Context, name, symbol string, announcementID int64) (*domain.Token, error) {
	name, symbol = storage.NormalizeTokenIdentity(name, symbol)
	if name == "" && symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	t, err := s.findOrCreateTx(ctx, name, symbol, announcementID)
	if err != nil && errors.Is(err, storage.ErrDuplicateKey) {
		t, err = s.findOrCreateTx(ctx, name, symbol, announcementID)
	}
	return t, err
}

func (s *TokenStore) findOrCreateTx(ctx context.Context, name, symbol string, announcementID int64) (*domain.Token, error) {
	var t *domain.Token
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = resolveToken(ctx, tx, name, symbol)
		if err != nil || t != nil {
			return err
		}

		query := `
			INSERT INTO tokens (name, symbol, first_announcement_id)
			VALUES ($1, $2, NULLIF($3, 0))
			RETURNING ` + tokenColumns
		t, err = scanToken(tx.QueryRow(ctx, query, name, symbol, announcementID))
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert token: %w", err)
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, err
	}
	return t, nil
}

// resolveToken applies the identity rule: name is primary (case-insensitive),
// symbol-only lookups take the newest row, and partial rows are completed.
func resolveToken(ctx context.Context, tx pgx.Tx, name, symbol string) (*domain.Token, error) {
	if name == "" {
		query := `SELECT ` + tokenColumns + ` FROM tokens WHERE symbol = $1 ORDER BY id DESC LIMIT 1`
		t, err := scanToken(tx.QueryRow(ctx, query, symbol))
		if err != nil {
			if isNotFoundError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("get token by symbol: %w", err)
		}
		return t, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE lower(name) = lower($1) ORDER BY id ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("get tokens by name: %w", err)
	}
	sameName, err := collectTokens(rows)
	if err != nil {
		return nil, err
	}

	for _, t := range sameName {
		if t.Symbol == symbol {
			return t, nil
		}
	}
	if symbol == "" && len(sameName) > 0 {
		return sameName[0], nil
	}
	for _, t := range sameName {
		if t.Symbol == "" {
			return updateToken(ctx, tx, `UPDATE tokens SET symbol = $2 WHERE id = $1 RETURNING `+tokenColumns, t.ID, symbol)
		}
	}

	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE name = '' AND symbol = $1 ORDER BY id DESC LIMIT 1`
	orphan, err := scanToken(tx.QueryRow(ctx, query, symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get symbol-only token: %w", err)
	}
	return updateToken(ctx, tx, `UPDATE tokens SET name = $2 WHERE id = $1 RETURNING `+tokenColumns, orphan.ID, name)
}

func updateToken(ctx context.Context, tx pgx.Tx, query string, id int64, value string) (*domain.Token, error) {
	t, err := scanToken(tx.QueryRow(ctx, query, id, value))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("update token: %w", err)
	}
	return t, nil
}

// Link records that the announcement mentions the token.
func (s *TokenStore) Link(ctx context.Context, announcementID, tokenID int64) error {
	if announcementID == 0 || tokenID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO announcement_tokens (announcement_id, token_id)
		SELECT $1, id FROM tokens WHERE id = $2
		ON CONFLICT DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, announcementID, tokenID); err != nil {
		return fmt.Errorf("link token: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, tokenID).Scan(&exists); err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// GetByAnnouncementID retrieves tokens linked to an announcement, ordered by id ASC.
func (s *TokenStore) GetByAnnouncementID(ctx context.Context, announcementID int64) ([]*domain.Token, error) {
	query := `
		SELECT t.id, t.name, t.symbol, COALESCE(t.first_announcement_id, 0), t.created_at
		FROM tokens t
		JOIN announcement_tokens l ON l.token_id = t.id
		WHERE l.announcement_id = $1
		ORDER BY t.id ASC
	`
	rows, err := s.pool.Query(ctx, query, announcementID)
	if err != nil {
		return nil, fmt.Errorf("get tokens by announcement: %w", err)
	}
	return collectTokens(rows)
}

// GetBySymbol retrieves all tokens with the given symbol, newest first.
func (s *TokenStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Token, error) {
	_, symbol = storage.NormalizeTokenIdentity("", symbol)

	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE symbol = $1 ORDER BY id DESC`
	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get tokens by symbol: %w", err)
	}
	return collectTokens(rows)
}

func collectTokens(rows pgx.Rows) ([]*domain.Token, error) {
	defer rows.Close()

	var result []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}

// scanToken scans a single row into Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(&t.ID, &t.Name, &t.Symbol, &t.FirstAnnouncementID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
