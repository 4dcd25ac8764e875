package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/id"
	"github.com/stashmark/stashmark-server/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, user_id, organization_id, name, color, usage_count, created_at, updated_at`

// tagColumnsPrefixed is tagColumns with a "t." alias prefix for joins.
const tagColumnsPrefixed = `t.id, t.user_id, t.organization_id, t.name, t.color, t.usage_count, t.created_at, t.updated_at`

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	return scanTagWithPrefix(scanner)
}

// scanTagWithPrefix scans a tag, optionally consuming extra leading columns
// into the given destinations (used when joining through bookmark_tags).
func scanTagWithPrefix(scanner interface{ Scan(dest ...any) error }, extra ...any) (*domain.Tag, error) {
	var t domain.Tag

	var (
		color     sql.NullString
		createdAt string
		updatedAt string
	)

	dest := append(extra,
		&t.ID,
		&t.UserID,
		&t.OrganizationID,
		&t.Name,
		&color,
		&t.UsageCount,
		&createdAt,
		&updatedAt,
	)

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	if color.Valid {
		t.Color = color.String
	}

	var err error
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// FindOrCreateTag finds the user's tag with the given name or creates it.
// Returns (tag, created, error) where created is true if a new tag was made.
func (s *Store) FindOrCreateTag(ctx context.Context, userID, orgID, name string) (*domain.Tag, bool, error) {
	// Try to find existing tag first.
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND name = ?`, userID, name)

	existing, err := scanTag(row)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	// Tag doesn't exist, create it.
	tagID, err := id.Generate("tag")
	if err != nil {
		return nil, false, fmt.Errorf("generate tag id: %w", err)
	}

	now := time.Now().UTC()
	t := &domain.Tag{
		ID:             tagID,
		UserID:         userID,
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tags (id, user_id, organization_id, name, color, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.OrganizationID,
		t.Name,
		nullString(t.Color),
		t.UsageCount,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		// Lost a race with a concurrent create; return the winner.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			row := s.db.QueryRowContext(ctx,
				`SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND name = ?`, userID, name)
			winner, scanErr := scanTag(row)
			if scanErr != nil {
				return nil, false, scanErr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	return t, true, nil
}

// GetTag retrieves a tag by ID, scoped to the owning user.
// Returns store.ErrNotFound if the tag does not exist or belongs to another user.
func (s *Store) GetTag(ctx context.Context, userID, tagID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ? AND user_id = ?`, tagID, userID)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags returns all of the user's tags ordered by name.
func (s *Store) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tags, nil
}

// UpdateTag performs a full row update on an existing tag.
// Returns store.ErrNotFound if the tag does not exist or belongs to another
// user, and store.ErrAlreadyExists on a name collision.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tags SET
			name = ?,
			color = ?,
			usage_count = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?`,
		t.Name,
		nullString(t.Color),
		t.UsageCount,
		formatTime(t.UpdatedAt),
		t.ID,
		t.UserID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTag hard-deletes a tag. Join rows cascade away; bookmarks survive.
// Returns store.ErrNotFound if the tag does not exist or belongs to another user.
func (s *Store) DeleteTag(ctx context.Context, userID, tagID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = ? AND user_id = ?`, tagID, userID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
