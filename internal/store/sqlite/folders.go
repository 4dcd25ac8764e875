package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

// folderColumns is the ordered list of columns selected in folder queries.
// Must match the scan order in scanFolder.
const folderColumns = `id, user_id, organization_id, name, parent_id, position, color, icon, created_at, updated_at`

// scanFolder scans a sql.Row (or sql.Rows via its Scan method) into a domain.Folder.
func scanFolder(scanner interface{ Scan(dest ...any) error }) (*domain.Folder, error) {
	var f domain.Folder

	var (
		parentID  sql.NullString
		color     sql.NullString
		icon      sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&f.ID,
		&f.UserID,
		&f.OrganizationID,
		&f.Name,
		&parentID,
		&f.Position,
		&color,
		&icon,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	if color.Valid {
		f.Color = color.String
	}
	if icon.Valid {
		f.Icon = icon.String
	}

	f.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	f.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// CreateFolder inserts a new folder into the database.
// Returns store.ErrAlreadyExists if the folder ID already exists.
func (s *Store) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, user_id, organization_id, name, parent_id, position, color, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		folder.ID,
		folder.UserID,
		folder.OrganizationID,
		folder.Name,
		nullableString(folder.ParentID),
		folder.Position,
		nullString(folder.Color),
		nullString(folder.Icon),
		formatTime(folder.CreatedAt),
		formatTime(folder.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetFolder retrieves a folder by ID, scoped to the owning user.
// Returns store.ErrNotFound if the folder does not exist or belongs to another user.
func (s *Store) GetFolder(ctx context.Context, userID, id string) (*domain.Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ? AND user_id = ?`, id, userID)

	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFolders returns all of the user's folders ordered by position then name.
func (s *Store) ListFolders(ctx context.Context, userID string) ([]*domain.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE user_id = ? ORDER BY position ASC, name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := []*domain.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return folders, nil
}

// UpdateFolder performs a full row update on an existing folder.
// Returns store.ErrNotFound if the folder does not exist or belongs to another user.
func (s *Store) UpdateFolder(ctx context.Context, folder *domain.Folder) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE folders SET
			name = ?,
			parent_id = ?,
			position = ?,
			color = ?,
			icon = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?`,
		folder.Name,
		nullableString(folder.ParentID),
		folder.Position,
		nullString(folder.Color),
		nullString(folder.Icon),
		formatTime(folder.UpdatedAt),
		folder.ID,
		folder.UserID,
	)
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

// DeleteFolder hard-deletes a folder. Subfolders cascade away; bookmarks in
// the folder survive with folder_id set to NULL.
// Returns store.ErrNotFound if the folder does not exist or belongs to another user.
func (s *Store) DeleteFolder(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM folders WHERE id = ? AND user_id = ?`, id, userID)
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

// MaxSiblingPosition returns the highest position among the user's folders
// under the given parent (nil for root). Returns -1 when there are no siblings,
// so the next position is always max+1.
func (s *Store) MaxSiblingPosition(ctx context.Context, userID string, parentID *string) (int, error) {
	var query string
	args := []any{userID}

	if parentID == nil {
		query = `SELECT COALESCE(MAX(position), -1) FROM folders WHERE user_id = ? AND parent_id IS NULL`
	} else {
		query = `SELECT COALESCE(MAX(position), -1) FROM folders WHERE user_id = ? AND parent_id = ?`
		args = append(args, *parentID)
	}

	var maxPos int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&maxPos); err != nil {
		return 0, err
	}
	return maxPos, nil
}
