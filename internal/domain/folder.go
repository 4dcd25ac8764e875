package domain

import "time"

// Folder organizes a user's bookmarks into a tree. ParentID of nil means a
// root folder. Position orders siblings under the same parent.
type Folder struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	ParentID       *string   `json:"parent_id,omitempty"`
	Position       int       `json:"position"`
	Color          string    `json:"color,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	Children       []*Folder `json:"children,omitempty"` // Populated only when building trees
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsRoot returns true if the folder has no parent.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// Touch updates the UpdatedAt timestamp.
func (f *Folder) Touch() {
	f.UpdatedAt = time.Now()
}
