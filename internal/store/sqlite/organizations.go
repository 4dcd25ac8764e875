package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/store"
)

// organizationColumns is the ordered list of columns selected in organization queries.
// Must match the scan order in scanOrganization.
const organizationColumns = `id, name, slug, created_at, updated_at`

// scanOrganization scans a sql.Row (or sql.Rows via its Scan method) into a domain.Organization.
func scanOrganization(scanner interface{ Scan(dest ...any) error }) (*domain.Organization, error) {
	var o domain.Organization

	var (
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&o.ID,
		&o.Name,
		&o.Slug,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	o.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

// createOrganizationTx inserts an organization within an existing transaction.
func createOrganizationTx(ctx context.Context, tx *sql.Tx, org *domain.Organization) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		formatTime(org.CreatedAt),
		formatTime(org.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetOrganization retrieves an organization by ID.
// Returns store.ErrNotFound if the organization does not exist.
func (s *Store) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)

	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganizationBySlug retrieves an organization by its slug.
// Returns store.ErrNotFound if the organization does not exist.
func (s *Store) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE slug = ?`, slug)

	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization performs a full row update on an existing organization.
// Returns store.ErrNotFound if the organization does not exist.
func (s *Store) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET
			name = ?,
			slug = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?`,
		org.Name,
		org.Slug,
		formatTime(org.CreatedAt),
		formatTime(org.UpdatedAt),
		org.ID,
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
