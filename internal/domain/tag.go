package domain

import "time"

// Tag represents a per-user label for bookmarks. Names are unique within a
// user, matched case-sensitively after trimming.
type Tag struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color,omitempty"`
	UsageCount     int       `json:"usage_count"` // Denormalized count of live bookmarks carrying this tag
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}
