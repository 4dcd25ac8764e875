package domain

import "time"

// RefreshToken represents a single-use opaque refresh token.
// Only the hash is stored; the raw token goes to the client once and is
// never recoverable from the database.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash,omitempty"` // Filter from API responses
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the token has passed its expiration time.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
