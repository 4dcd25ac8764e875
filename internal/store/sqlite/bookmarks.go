package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

// bookmarkColumns is the ordered list of columns selected in bookmark queries.
// Must match the scan order in scanBookmark.
const bookmarkColumns = `id, user_id, organization_id, url, url_hash, domain, title, description, notes,
	favicon_url, folder_id, is_favorite, is_archived, visit_count,
	last_visited_at, deleted_at, created_at, updated_at`

// scanBookmark scans a sql.Row (or sql.Rows via its Scan method) into a domain.Bookmark.
// Tags are not loaded here; use loadBookmarkTags.
func scanBookmark(scanner interface{ Scan(dest ...any) error }) (*domain.Bookmark, error) {
	var b domain.Bookmark

	var (
		description   sql.NullString
		notes         sql.NullString
		faviconURL    sql.NullString
		folderID      sql.NullString
		isFavorite    int
		isArchived    int
		lastVisitedAt sql.NullString
		deletedAt     sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&b.ID,
		&b.UserID,
		&b.OrganizationID,
		&b.URL,
		&b.URLHash,
		&b.Domain,
		&b.Title,
		&description,
		&notes,
		&faviconURL,
		&folderID,
		&isFavorite,
		&isArchived,
		&b.VisitCount,
		&lastVisitedAt,
		&deletedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.IsFavorite = isFavorite != 0
	b.IsArchived = isArchived != 0

	if description.Valid {
		b.Description = description.String
	}
	if notes.Valid {
		b.Notes = notes.String
	}
	if faviconURL.Valid {
		b.FaviconURL = faviconURL.String
	}
	if folderID.Valid {
		b.FolderID = &folderID.String
	}

	b.LastVisitedAt, err = parseNullableTime(lastVisitedAt)
	if err != nil {
		return nil, err
	}
	b.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBookmark inserts a bookmark and its tag associations atomically.
// Returns store.ErrAlreadyExists when a live bookmark with the same URL hash
// already exists for the user.
func (s *Store) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookmarks (
			id, user_id, organization_id, url, url_hash, domain, title, description,
			notes, favicon_url, folder_id, is_favorite, is_archived, visit_count,
			last_visited_at, deleted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bookmark.ID,
		bookmark.UserID,
		bookmark.OrganizationID,
		bookmark.URL,
		bookmark.URLHash,
		bookmark.Domain,
		bookmark.Title,
		nullString(bookmark.Description),
		nullString(bookmark.Notes),
		nullString(bookmark.FaviconURL),
		nullableString(bookmark.FolderID),
		boolInt(bookmark.IsFavorite),
		boolInt(bookmark.IsArchived),
		bookmark.VisitCount,
		nullTimeString(bookmark.LastVisitedAt),
		nullTimeString(bookmark.DeletedAt),
		formatTime(bookmark.CreatedAt),
		formatTime(bookmark.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	if err := insertBookmarkTagsTx(ctx, tx, bookmark.ID, tagIDs); err != nil {
		return err
	}
	if err := refreshTagUsageCountsTx(ctx, tx, tagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// GetBookmark retrieves a live bookmark by ID, scoped to the owning user.
// Returns store.ErrNotFound for missing, soft-deleted, or foreign rows.
func (s *Store) GetBookmark(ctx context.Context, userID, id string) (*domain.Bookmark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks
		 WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)

	b, err := scanBookmark(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tagsByBookmark, err := s.loadBookmarkTags(ctx, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.Tags = tagsByBookmark[b.ID]

	return b, nil
}

// GetLiveBookmarkByHash retrieves the user's live bookmark with the given URL hash.
// Returns store.ErrNotFound if none exists.
func (s *Store) GetLiveBookmarkByHash(ctx context.Context, userID, urlHash string) (*domain.Bookmark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks
		 WHERE user_id = ? AND url_hash = ? AND deleted_at IS NULL`, userID, urlHash)

	b, err := scanBookmark(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookmarks returns a page of the user's live bookmarks matching the filter,
// newest first. Tags are loaded for every returned bookmark.
func (s *Store) ListBookmarks(ctx context.Context, userID string, filter store.BookmarkFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Bookmark], error) {
	params.Validate()

	where := []string{"b.user_id = ?", "b.deleted_at IS NULL"}
	args := []any{userID}

	if filter.FolderID != nil {
		where = append(where, "b.folder_id = ?")
		args = append(args, *filter.FolderID)
	}
	if len(filter.TagNames) > 0 {
		placeholders := strings.Repeat("?,", len(filter.TagNames))
		placeholders = placeholders[:len(placeholders)-1]
		where = append(where, "EXISTS (SELECT 1 FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id WHERE bt.bookmark_id = b.id AND t.name IN ("+placeholders+"))")
		for _, name := range filter.TagNames {
			args = append(args, name)
		}
	}
	if filter.Search != "" {
		where = append(where, "(b.title LIKE ? OR b.description LIKE ? OR b.url LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.IsFavorite != nil {
		where = append(where, "b.is_favorite = ?")
		args = append(args, boolInt(*filter.IsFavorite))
	}
	if filter.IsArchived != nil {
		where = append(where, "b.is_archived = ?")
		args = append(args, boolInt(*filter.IsArchived))
	}
	if filter.Domain != "" {
		where = append(where, "b.domain = ?")
		args = append(args, filter.Domain)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks b WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, err
	}

	queryArgs := append(args, params.Limit, params.Offset()) //nolint:gocritic // args is not reused
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookmarkColumnsPrefixed+` FROM bookmarks b
		 WHERE `+whereClause+`
		 ORDER BY b.created_at DESC
		 LIMIT ? OFFSET ?`, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []*domain.Bookmark{}
	ids := []string{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagsByBookmark, err := s.loadBookmarkTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range bookmarks {
		b.Tags = tagsByBookmark[b.ID]
	}

	result := store.NewPaginatedResult(bookmarks, total, params)
	return &result, nil
}

// bookmarkColumnsPrefixed is bookmarkColumns with a "b." alias prefix for
// queries that join or filter against other tables.
const bookmarkColumnsPrefixed = `b.id, b.user_id, b.organization_id, b.url, b.url_hash, b.domain, b.title, b.description, b.notes,
	b.favicon_url, b.folder_id, b.is_favorite, b.is_archived, b.visit_count,
	b.last_visited_at, b.deleted_at, b.created_at, b.updated_at`

// UpdateBookmark performs a full row update on an existing live bookmark.
// Returns store.ErrNotFound if the bookmark does not exist, is deleted, or
// belongs to another user. Returns store.ErrAlreadyExists when the update
// would collide with another live bookmark's URL hash.
func (s *Store) UpdateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET
			url = ?,
			url_hash = ?,
			domain = ?,
			title = ?,
			description = ?,
			notes = ?,
			favicon_url = ?,
			folder_id = ?,
			is_favorite = ?,
			is_archived = ?,
			visit_count = ?,
			last_visited_at = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		bookmark.URL,
		bookmark.URLHash,
		bookmark.Domain,
		bookmark.Title,
		nullString(bookmark.Description),
		nullString(bookmark.Notes),
		nullString(bookmark.FaviconURL),
		nullableString(bookmark.FolderID),
		boolInt(bookmark.IsFavorite),
		boolInt(bookmark.IsArchived),
		bookmark.VisitCount,
		nullTimeString(bookmark.LastVisitedAt),
		formatTime(bookmark.UpdatedAt),
		bookmark.ID,
		bookmark.UserID,
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

// SetBookmarkTags replaces the bookmark's tag associations with the given set
// and refreshes usage counts for every tag touched by the change.
func (s *Store) SetBookmarkTags(ctx context.Context, userID, bookmarkID string, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	// Confirm ownership before touching join rows.
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		bookmarkID, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}

	// Collect tags losing this bookmark so their counts get refreshed too.
	oldTagIDs, err := bookmarkTagIDsTx(ctx, tx, bookmarkID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bookmark_tags WHERE bookmark_id = ?`, bookmarkID); err != nil {
		return err
	}
	if err := insertBookmarkTagsTx(ctx, tx, bookmarkID, tagIDs); err != nil {
		return err
	}

	affected := append(oldTagIDs, tagIDs...) //nolint:gocritic // oldTagIDs is not reused
	if err := refreshTagUsageCountsTx(ctx, tx, affected); err != nil {
		return err
	}

	return tx.Commit()
}

// SoftDeleteBookmark marks a live bookmark as deleted and refreshes the usage
// counts of its tags. Returns store.ErrNotFound if no live bookmark matches.
func (s *Store) SoftDeleteBookmark(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	tagIDs, err := bookmarkTagIDsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	result, err := tx.ExecContext(ctx, `
		UPDATE bookmarks SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		now, now, id, userID)
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

	if err := refreshTagUsageCountsTx(ctx, tx, tagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// loadBookmarkTags fetches tags for the given bookmark IDs in one query.
func (s *Store) loadBookmarkTags(ctx context.Context, bookmarkIDs []string) (map[string][]*domain.Tag, error) {
	result := make(map[string][]*domain.Tag, len(bookmarkIDs))
	if len(bookmarkIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(bookmarkIDs)-1) + "?"
	args := make([]any, len(bookmarkIDs))
	for i, id := range bookmarkIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bt.bookmark_id, `+tagColumnsPrefixed+`
		FROM bookmark_tags bt
		JOIN tags t ON t.id = bt.tag_id
		WHERE bt.bookmark_id IN (`+placeholders+`)
		ORDER BY t.name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var bookmarkID string
		t, err := scanTagWithPrefix(rows, &bookmarkID)
		if err != nil {
			return nil, err
		}
		result[bookmarkID] = append(result[bookmarkID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// bookmarkTagIDsTx returns the tag IDs currently attached to a bookmark.
func bookmarkTagIDsTx(ctx context.Context, tx *sql.Tx, bookmarkID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT tag_id FROM bookmark_tags WHERE bookmark_id = ?`, bookmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// insertBookmarkTagsTx inserts join rows for a bookmark's tags.
func insertBookmarkTagsTx(ctx context.Context, tx *sql.Tx, bookmarkID string, tagIDs []string) error {
	now := formatTime(time.Now())
	for _, tagID := range tagIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO bookmark_tags (bookmark_id, tag_id, created_at)
			VALUES (?, ?, ?)`, bookmarkID, tagID, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// refreshTagUsageCountsTx recomputes usage_count for the given tags from the
// live bookmarks that carry them.
func refreshTagUsageCountsTx(ctx context.Context, tx *sql.Tx, tagIDs []string) error {
	seen := make(map[string]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if seen[tagID] {
			continue
		}
		seen[tagID] = true

		_, err := tx.ExecContext(ctx, `
			UPDATE tags SET usage_count = (
				SELECT COUNT(*) FROM bookmark_tags bt
				JOIN bookmarks b ON b.id = bt.bookmark_id
				WHERE bt.tag_id = tags.id AND b.deleted_at IS NULL
			) WHERE id = ?`, tagID)
		if err != nil {
			return err
		}
	}
	return nil
}
