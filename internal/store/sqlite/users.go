package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, email, password_hash, name, avatar_url, provider, provider_id,
	organization_id, role, is_active, last_login_at, created_at, updated_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User

	var (
		passwordHash sql.NullString
		avatarURL    sql.NullString
		provider     string
		providerID   sql.NullString
		role         string
		isActive     int
		lastLoginAt  sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&u.ID,
		&u.Email,
		&passwordHash,
		&u.Name,
		&avatarURL,
		&provider,
		&providerID,
		&u.OrganizationID,
		&role,
		&isActive,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Provider = domain.AuthProvider(provider)
	u.Role = domain.Role(role)
	u.IsActive = isActive != 0

	if passwordHash.Valid {
		u.PasswordHash = passwordHash.String
	}
	if avatarURL.Valid {
		u.AvatarURL = avatarURL.String
	}
	if providerID.Valid {
		u.ProviderID = providerID.String
	}

	if lastLoginAt.Valid && lastLoginAt.String != "" {
		u.LastLoginAt, err = parseTime(lastLoginAt.String)
		if err != nil {
			return nil, err
		}
	}
	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// boolInt converts a bool to the 0/1 integer SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullLoginTime formats a last-login timestamp, zero meaning never.
func nullLoginTime(u *domain.User) sql.NullString {
	if u.LastLoginAt.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(u.LastLoginAt), Valid: true}
}

// CreateUserWithOrganization atomically creates a user and their organization.
// Either both rows exist afterwards or neither does.
// Returns store.ErrEmailExists if the email is already registered.
func (s *Store) CreateUserWithOrganization(ctx context.Context, user *domain.User, org *domain.Organization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	if err := createOrganizationTx(ctx, tx, org); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, name, avatar_url, provider, provider_id,
			organization_id, role, is_active, last_login_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		nullString(user.PasswordHash),
		user.Name,
		nullString(user.AvatarURL),
		string(user.Provider),
		nullString(user.ProviderID),
		user.OrganizationID,
		string(user.Role),
		boolInt(user.IsActive),
		nullLoginTime(user),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return store.ErrEmailExists
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	return tx.Commit()
}

// GetUser retrieves a user by ID.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByProvider retrieves a user by OAuth provider and provider subject ID.
// Returns store.ErrUserNotFound if no such user exists.
func (s *Store) GetUserByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_id = ?`,
		string(provider), providerID)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser performs a full row update on an existing user.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			email = ?,
			password_hash = ?,
			name = ?,
			avatar_url = ?,
			provider = ?,
			provider_id = ?,
			organization_id = ?,
			role = ?,
			is_active = ?,
			last_login_at = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?`,
		user.Email,
		nullString(user.PasswordHash),
		user.Name,
		nullString(user.AvatarURL),
		string(user.Provider),
		nullString(user.ProviderID),
		user.OrganizationID,
		string(user.Role),
		boolInt(user.IsActive),
		nullLoginTime(user),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return store.ErrEmailExists
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
