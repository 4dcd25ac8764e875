package domain

import "time"

// Organization is the tenant boundary. Every user belongs to exactly one,
// created automatically at signup.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"` // Unique, URL-safe: "acme-inc-x3k9f2"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (o *Organization) Touch() {
	o.UpdatedAt = time.Now()
}
