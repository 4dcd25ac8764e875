// Package domain contains the core entity types shared across services and storage.
package domain

import "time"

// Role represents the user's permission level within their organization.
type Role string

const (
	// RoleOwner grants full control over the organization.
	RoleOwner Role = "owner"
	// RoleMember grants standard access.
	RoleMember Role = "member"
)

// AuthProvider identifies how a user authenticates.
type AuthProvider string

const (
	// ProviderEmail is password-based authentication.
	ProviderEmail AuthProvider = "email"
	// ProviderGoogle is Google OAuth.
	ProviderGoogle AuthProvider = "google"
	// ProviderGitHub is GitHub OAuth.
	ProviderGitHub AuthProvider = "github"
)

// User represents an authenticated user account in the system.
type User struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	PasswordHash   string       `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	Name           string       `json:"name"`
	AvatarURL      string       `json:"avatar_url,omitempty"`
	Provider       AuthProvider `json:"provider"`                  // email, google, github
	ProviderID     string       `json:"provider_id,omitempty"`     // Subject ID at the OAuth provider
	OrganizationID string       `json:"organization_id"`
	Role           Role         `json:"role"` // owner or member
	IsActive       bool         `json:"is_active"`
	LastLoginAt    time.Time    `json:"last_login_at,omitzero"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsOwner returns true if the user owns their organization.
func (u *User) IsOwner() bool {
	return u.Role == RoleOwner
}

// HasPassword returns true if the user can authenticate with credentials.
// OAuth-only accounts have no password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Touch updates the UpdatedAt timestamp.
func (u *User) Touch() {
	u.UpdatedAt = time.Now()
}
