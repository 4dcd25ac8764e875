package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

// refreshTokenColumns is the ordered list of columns selected in refresh token queries.
// Must match the scan order in scanRefreshToken.
const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at`

// scanRefreshToken scans a sql.Row (or sql.Rows via its Scan method) into a domain.RefreshToken.
func scanRefreshToken(scanner interface{ Scan(dest ...any) error }) (*domain.RefreshToken, error) {
	var t domain.RefreshToken

	var (
		expiresAt string
		createdAt string
	)

	err := scanner.Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// CreateRefreshToken inserts a new refresh token row.
// Returns store.ErrAlreadyExists on a duplicate token hash.
func (s *Store) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.TokenHash,
		formatTime(token.ExpiresAt),
		formatTime(token.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash.
// Returns store.ErrTokenNotFound if no matching row exists.
func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash)

	t, err := scanRefreshToken(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteRefreshTokenByHash deletes a refresh token by its hash.
// Returns store.ErrTokenNotFound if no row was deleted. Callers rely on this
// to detect a token being consumed twice concurrently.
func (s *Store) DeleteRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrTokenNotFound
	}
	return nil
}

// DeleteUserRefreshTokens deletes all refresh tokens belonging to a user.
func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredRefreshTokens deletes all tokens where expires_at is in the past.
// Returns the number of tokens deleted.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int, error) {
	now := formatTime(time.Now())

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
