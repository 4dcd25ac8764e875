package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stashmark/stashmark-server/internal/domain"
	domainerrors "github.com/stashmark/stashmark-server/internal/errors"
	"github.com/stashmark/stashmark-server/internal/id"
	"github.com/stashmark/stashmark-server/internal/store"
	"github.com/stashmark/stashmark-server/internal/urlnorm"
)

// BookmarkService orchestrates bookmark CRUD, duplicate detection, and
// tag assignment. All operations are scoped to the calling user.
type BookmarkService struct {
	store  store.Store
	logger *slog.Logger
}

// NewBookmarkService creates a new bookmark service.
func NewBookmarkService(store store.Store, logger *slog.Logger) *BookmarkService {
	return &BookmarkService{
		store:  store,
		logger: logger,
	}
}

// CreateBookmarkRequest contains data for saving a new bookmark.
type CreateBookmarkRequest struct {
	URL         string   `json:"url" validate:"required,url,max=2048"`
	Title       string   `json:"title" validate:"omitempty,max=500"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	Notes       string   `json:"notes" validate:"omitempty,max=10000"`
	FaviconURL  string   `json:"faviconUrl" validate:"omitempty,url,max=2048"`
	FolderID    *string  `json:"folderId,omitempty"`
	Tags        []string `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	IsFavorite  bool     `json:"isFavorite"`
}

// UpdateBookmarkRequest contains mutable bookmark fields. Nil pointers
// leave the current value unchanged; Tags, when present, replaces the
// full tag set. A new URL re-runs duplicate detection.
type UpdateBookmarkRequest struct {
	URL         *string   `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=500"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Notes       *string   `json:"notes,omitempty" validate:"omitempty,max=10000"`
	FaviconURL  *string   `json:"faviconUrl,omitempty" validate:"omitempty,max=2048"`
	FolderID    *string   `json:"folderId,omitempty"`
	ClearFolder bool      `json:"clearFolder,omitempty"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=50"`
	IsFavorite  *bool     `json:"isFavorite,omitempty"`
	IsArchived  *bool     `json:"isArchived,omitempty"`
}

// ListBookmarksRequest carries listing filters and pagination.
type ListBookmarksRequest struct {
	FolderID   *string
	Tags       string // comma-separated tag names
	Search     string
	IsFavorite *bool
	IsArchived *bool
	Domain     string
	Page       int
	Limit      int
}

// CreateBookmark saves a bookmark for a user. The URL is normalized
// before hashing so tracking-parameter variants of the same page
// collapse to one bookmark per user.
func (s *BookmarkService) CreateBookmark(ctx context.Context, userID, orgID string, req CreateBookmarkRequest) (*domain.Bookmark, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	normalized := urlnorm.Normalize(req.URL)
	urlHash := urlnorm.Hash(req.URL)

	// Reject duplicates up front with a pointer to the existing bookmark
	existing, err := s.store.GetLiveBookmarkByHash(ctx, userID, urlHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		return nil, domainerrors.Conflict("bookmark already exists for this URL").
			WithDetails(map[string]string{"bookmarkId": existing.ID})
	}

	if req.FolderID != nil {
		if _, err := s.store.GetFolder(ctx, userID, *req.FolderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.NotFound("folder not found")
			}
			return nil, fmt.Errorf("get folder: %w", err)
		}
	}

	tagIDs, tags, err := s.resolveTags(ctx, userID, orgID, req.Tags)
	if err != nil {
		return nil, err
	}

	bookmarkID, err := id.Generate("bm")
	if err != nil {
		return nil, fmt.Errorf("generate bookmark ID: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = normalized
	}

	now := time.Now()
	bookmark := &domain.Bookmark{
		ID:             bookmarkID,
		UserID:         userID,
		OrganizationID: orgID,
		URL:            req.URL,
		URLHash:        urlHash,
		Domain:         urlnorm.ExtractDomain(req.URL),
		Title:          title,
		Description:    strings.TrimSpace(req.Description),
		Notes:          req.Notes,
		FaviconURL:     req.FaviconURL,
		FolderID:       req.FolderID,
		IsFavorite:     req.IsFavorite,
		Tags:           tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateBookmark(ctx, bookmark, tagIDs); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent save of the same URL
			return nil, domainerrors.Conflict("bookmark already exists for this URL")
		}
		return nil, fmt.Errorf("create bookmark: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Bookmark created",
			"bookmark_id", bookmark.ID,
			"user_id", userID,
			"domain", bookmark.Domain,
		)
	}

	return bookmark, nil
}

// GetBookmark returns a single live bookmark with its tags.
func (s *BookmarkService) GetBookmark(ctx context.Context, userID, bookmarkID string) (*domain.Bookmark, error) {
	bookmark, err := s.store.GetBookmark(ctx, userID, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	return bookmark, nil
}

// ListBookmarks returns a filtered, paginated page of a user's bookmarks,
// newest first.
func (s *BookmarkService) ListBookmarks(ctx context.Context, userID string, req ListBookmarksRequest) (*store.PaginatedResult[*domain.Bookmark], error) {
	var tagNames []string
	for name := range strings.SplitSeq(req.Tags, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tagNames = append(tagNames, name)
		}
	}

	filter := store.BookmarkFilter{
		FolderID:   req.FolderID,
		TagNames:   tagNames,
		Search:     strings.TrimSpace(req.Search),
		IsFavorite: req.IsFavorite,
		IsArchived: req.IsArchived,
		Domain:     strings.ToLower(strings.TrimSpace(req.Domain)),
	}
	params := store.PaginationParams{Page: req.Page, Limit: req.Limit}
	params.Validate()

	result, err := s.store.ListBookmarks(ctx, userID, filter, params)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return result, nil
}

// UpdateBookmark applies partial changes to a bookmark. Retargeting to
// a different URL re-runs the same duplicate detection as a fresh save.
func (s *BookmarkService) UpdateBookmark(ctx context.Context, userID, orgID, bookmarkID string, req UpdateBookmarkRequest) (*domain.Bookmark, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	bookmark, err := s.store.GetBookmark(ctx, userID, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}

	if req.URL != nil {
		urlHash := urlnorm.Hash(*req.URL)
		if urlHash != bookmark.URLHash {
			existing, err := s.store.GetLiveBookmarkByHash(ctx, userID, urlHash)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("check duplicate: %w", err)
			}
			if existing != nil {
				return nil, domainerrors.Conflict("bookmark already exists for this URL").
					WithDetails(map[string]string{"bookmarkId": existing.ID})
			}
			bookmark.URLHash = urlHash
		}
		bookmark.URL = *req.URL
		bookmark.Domain = urlnorm.ExtractDomain(*req.URL)
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domainerrors.Validation("title cannot be empty")
		}
		bookmark.Title = title
	}
	if req.Description != nil {
		bookmark.Description = strings.TrimSpace(*req.Description)
	}
	if req.Notes != nil {
		bookmark.Notes = *req.Notes
	}
	if req.FaviconURL != nil {
		bookmark.FaviconURL = *req.FaviconURL
	}
	if req.ClearFolder {
		bookmark.FolderID = nil
	} else if req.FolderID != nil {
		if _, err := s.store.GetFolder(ctx, userID, *req.FolderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.NotFound("folder not found")
			}
			return nil, fmt.Errorf("get folder: %w", err)
		}
		bookmark.FolderID = req.FolderID
	}
	if req.IsFavorite != nil {
		bookmark.IsFavorite = *req.IsFavorite
	}
	if req.IsArchived != nil {
		bookmark.IsArchived = *req.IsArchived
	}

	bookmark.Touch()
	if err := s.store.UpdateBookmark(ctx, bookmark); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent save of the new URL
			return nil, domainerrors.Conflict("bookmark already exists for this URL")
		}
		return nil, fmt.Errorf("update bookmark: %w", err)
	}

	if req.Tags != nil {
		tagIDs, tags, err := s.resolveTags(ctx, userID, orgID, *req.Tags)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetBookmarkTags(ctx, userID, bookmarkID, tagIDs); err != nil {
			return nil, fmt.Errorf("set bookmark tags: %w", err)
		}
		bookmark.Tags = tags
	}

	return bookmark, nil
}

// DeleteBookmark soft-deletes a bookmark. The URL becomes available for
// saving again; the row is retained for recovery.
func (s *BookmarkService) DeleteBookmark(ctx context.Context, userID, bookmarkID string) error {
	if err := s.store.SoftDeleteBookmark(ctx, userID, bookmarkID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("bookmark not found")
		}
		return fmt.Errorf("delete bookmark: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Bookmark deleted",
			"bookmark_id", bookmarkID,
			"user_id", userID,
		)
	}
	return nil
}

// RecordVisit increments a bookmark's visit counter and stamps the
// visit time. Used when a user opens a saved link.
func (s *BookmarkService) RecordVisit(ctx context.Context, userID, bookmarkID string) (*domain.Bookmark, error) {
	bookmark, err := s.store.GetBookmark(ctx, userID, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}

	bookmark.RecordVisit()
	if err := s.store.UpdateBookmark(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}
	return bookmark, nil
}

// ToggleFavorite flips a bookmark's favorite flag.
func (s *BookmarkService) ToggleFavorite(ctx context.Context, userID, bookmarkID string) (*domain.Bookmark, error) {
	bookmark, err := s.store.GetBookmark(ctx, userID, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}

	bookmark.IsFavorite = !bookmark.IsFavorite
	bookmark.Touch()
	if err := s.store.UpdateBookmark(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return bookmark, nil
}

// ToggleArchive flips a bookmark's archived flag.
func (s *BookmarkService) ToggleArchive(ctx context.Context, userID, bookmarkID string) (*domain.Bookmark, error) {
	bookmark, err := s.store.GetBookmark(ctx, userID, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}

	bookmark.IsArchived = !bookmark.IsArchived
	bookmark.Touch()
	if err := s.store.UpdateBookmark(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("toggle archive: %w", err)
	}
	return bookmark, nil
}

// CheckURL reports whether a user already has a live bookmark for a URL.
// Returns the existing bookmark when one exists, nil otherwise.
func (s *BookmarkService) CheckURL(ctx context.Context, userID, rawURL string) (*domain.Bookmark, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, domainerrors.Validation("url is required")
	}
	bookmark, err := s.store.GetLiveBookmarkByHash(ctx, userID, urlnorm.Hash(rawURL))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("check url: %w", err)
	}
	return bookmark, nil
}

// resolveTags finds or creates tags by name, skipping blanks and
// deduplicating case-sensitively. Returns IDs and the full tags.
func (s *BookmarkService) resolveTags(ctx context.Context, userID, orgID string, names []string) ([]string, []*domain.Tag, error) {
	if len(names) == 0 {
		return nil, []*domain.Tag{}, nil
	}

	seen := make(map[string]bool, len(names))
	tagIDs := make([]string, 0, len(names))
	tags := make([]*domain.Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tag, _, err := s.store.FindOrCreateTag(ctx, userID, orgID, name)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		tagIDs = append(tagIDs, tag.ID)
		tags = append(tags, tag)
	}
	return tagIDs, tags, nil
}
