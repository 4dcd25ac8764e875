package domain

import "time"

// Bookmark represents a saved URL owned by a single user.
// URLHash is computed from the normalized URL and backs duplicate detection;
// two bookmarks with the same hash are the same page as far as dedup cares.
type Bookmark struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	URL            string     `json:"url"`      // As provided by the user
	URLHash        string     `json:"url_hash"` // Digest of the normalized URL
	Domain         string     `json:"domain"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	FaviconURL     string     `json:"favicon_url,omitempty"`
	FolderID       *string    `json:"folder_id,omitempty"`
	IsFavorite     bool       `json:"is_favorite"`
	IsArchived     bool       `json:"is_archived"`
	VisitCount     int        `json:"visit_count"`
	LastVisitedAt  *time.Time `json:"last_visited_at,omitempty"`
	Tags           []*Tag     `json:"tags,omitempty"`
	DeletedAt      *time.Time `json:"-"` // Soft delete marker, never serialized
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsDeleted returns true if the bookmark has been soft-deleted.
func (b *Bookmark) IsDeleted() bool {
	return b.DeletedAt != nil
}

// MarkDeleted soft-deletes the bookmark.
func (b *Bookmark) MarkDeleted() {
	now := time.Now()
	b.DeletedAt = &now
	b.UpdatedAt = now
}

// RecordVisit increments the visit counter and stamps the visit time.
func (b *Bookmark) RecordVisit() {
	now := time.Now()
	b.VisitCount++
	b.LastVisitedAt = &now
	b.UpdatedAt = now
}

// Touch updates the UpdatedAt timestamp.
func (b *Bookmark) Touch() {
	b.UpdatedAt = time.Now()
}
