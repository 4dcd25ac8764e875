package store

import (
	"context"
	"errors"

	"github.com/stashmark/stashmark-server/internal/domain"
)

// Entity-specific sentinels for cases where callers need to distinguish
// which lookup failed.
var (
	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when a user's email is already registered.
	ErrEmailExists = errors.New("email already in use")

	// ErrTokenNotFound is returned when a refresh token lookup fails.
	ErrTokenNotFound = errors.New("refresh token not found")
)

// BookmarkFilter narrows bookmark listings. Zero values mean no filtering
// on that dimension.
type BookmarkFilter struct {
	FolderID   *string  // Only bookmarks in this folder
	TagNames   []string // Only bookmarks carrying any of these tags
	Search     string   // Substring match on title, description, and URL
	IsFavorite *bool
	IsArchived *bool
	Domain     string
}

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Organizations
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	UpdateOrganization(ctx context.Context, org *domain.Organization) error

	// Users
	CreateUserWithOrganization(ctx context.Context, user *domain.User, org *domain.Organization) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// Refresh tokens
	CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteRefreshTokenByHash(ctx context.Context, tokenHash string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int, error)

	// Bookmarks
	CreateBookmark(ctx context.Context, bookmark *domain.Bookmark, tagIDs []string) error
	GetBookmark(ctx context.Context, userID, id string) (*domain.Bookmark, error)
	GetLiveBookmarkByHash(ctx context.Context, userID, urlHash string) (*domain.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string, filter BookmarkFilter, params PaginationParams) (*PaginatedResult[*domain.Bookmark], error)
	UpdateBookmark(ctx context.Context, bookmark *domain.Bookmark) error
	SetBookmarkTags(ctx context.Context, userID, bookmarkID string, tagIDs []string) error
	SoftDeleteBookmark(ctx context.Context, userID, id string) error

	// Folders
	CreateFolder(ctx context.Context, folder *domain.Folder) error
	GetFolder(ctx context.Context, userID, id string) (*domain.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]*domain.Folder, error)
	UpdateFolder(ctx context.Context, folder *domain.Folder) error
	DeleteFolder(ctx context.Context, userID, id string) error
	MaxSiblingPosition(ctx context.Context, userID string, parentID *string) (int, error)

	// Tags
	FindOrCreateTag(ctx context.Context, userID, orgID, name string) (*domain.Tag, bool, error)
	GetTag(ctx context.Context, userID, id string) (*domain.Tag, error)
	ListTags(ctx context.Context, userID string) ([]*domain.Tag, error)
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, userID, id string) error
}
