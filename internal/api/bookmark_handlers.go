package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/service"
)

func (s *Server) registerBookmarkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/bookmarks",
		Summary:     "Create bookmark",
		Description: "Saves a bookmark. URLs are normalized before duplicate detection.",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks",
		Summary:     "List bookmarks",
		Description: "Returns a filtered, paginated list of bookmarks, newest first",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBookmarks)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkBookmarkURL",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks/check",
		Summary:     "Check URL",
		Description: "Reports whether the current user already has a bookmark for a URL",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCheckBookmarkURL)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmark",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Get bookmark",
		Description: "Returns a bookmark by ID",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBookmark",
		Method:      http.MethodPut,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Update bookmark",
		Description: "Updates bookmark fields. The tags list, when present, replaces all tags.",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBookmark",
		Method:      http.MethodDelete,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Delete bookmark",
		Description: "Soft-deletes a bookmark, freeing its URL for saving again",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleBookmarkFavorite",
		Method:      http.MethodPost,
		Path:        "/api/v1/bookmarks/{id}/favorite",
		Summary:     "Toggle favorite",
		Description: "Flips the bookmark's favorite flag",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleBookmarkFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleBookmarkArchive",
		Method:      http.MethodPost,
		Path:        "/api/v1/bookmarks/{id}/archive",
		Summary:     "Toggle archive",
		Description: "Flips the bookmark's archived flag",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleBookmarkArchive)

	huma.Register(s.api, huma.Operation{
		OperationID: "recordBookmarkVisit",
		Method:      http.MethodPost,
		Path:        "/api/v1/bookmarks/{id}/visit",
		Summary:     "Record visit",
		Description: "Increments the bookmark's visit counter",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRecordBookmarkVisit)
}

// === DTOs ===

// CreateBookmarkRequest is the request body for saving a bookmark.
type CreateBookmarkRequest struct {
	URL         string   `json:"url" validate:"required,url,max=2048" doc:"Page URL"`
	Title       string   `json:"title,omitempty" validate:"omitempty,max=500" doc:"Title (defaults to the normalized URL)"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Short description"`
	Notes       string   `json:"notes,omitempty" validate:"omitempty,max=10000" doc:"Personal notes"`
	FaviconURL  string   `json:"favicon_url,omitempty" validate:"omitempty,max=2048" doc:"Favicon URL"`
	FolderID    *string  `json:"folder_id,omitempty" doc:"Folder to file the bookmark in"`
	Tags        []string `json:"tags,omitempty" doc:"Tag names, created on demand"`
	IsFavorite  bool     `json:"is_favorite,omitempty" doc:"Mark as favorite"`
}

// CreateBookmarkInput wraps the create request for Huma.
type CreateBookmarkInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateBookmarkRequest
}

// UpdateBookmarkRequest is the request body for bookmark updates.
// Omitted fields are left unchanged.
type UpdateBookmarkRequest struct {
	URL         *string   `json:"url,omitempty" validate:"omitempty,url,max=2048" doc:"Page URL; a new URL re-runs duplicate detection"`
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=500" doc:"Title"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Short description"`
	Notes       *string   `json:"notes,omitempty" validate:"omitempty,max=10000" doc:"Personal notes"`
	FaviconURL  *string   `json:"favicon_url,omitempty" validate:"omitempty,max=2048" doc:"Favicon URL"`
	FolderID    *string   `json:"folder_id,omitempty" doc:"Folder to move the bookmark into"`
	ClearFolder bool      `json:"clear_folder,omitempty" doc:"Move the bookmark out of its folder"`
	Tags        *[]string `json:"tags,omitempty" doc:"Full replacement tag list"`
	IsFavorite  *bool     `json:"is_favorite,omitempty" doc:"Favorite flag"`
	IsArchived  *bool     `json:"is_archived,omitempty" doc:"Archived flag"`
}

// UpdateBookmarkInput wraps the update request for Huma.
type UpdateBookmarkInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Bookmark ID"`
	Body          UpdateBookmarkRequest
}

// ListBookmarksInput contains query parameters for listing bookmarks.
type ListBookmarksInput struct {
	Authorization string  `header:"Authorization"`
	FolderID      string  `query:"folder_id" doc:"Only bookmarks in this folder"`
	Tags          string  `query:"tags" doc:"Comma-separated tag names; matches bookmarks carrying any of them"`
	Search        string  `query:"search" doc:"Substring match on title, description, and URL"`
	IsFavorite    *bool   `query:"favorite" doc:"Filter by favorite flag"`
	IsArchived    *bool   `query:"archived" doc:"Filter by archived flag"`
	Domain        string  `query:"domain" doc:"Only bookmarks from this domain"`
	Page          int     `query:"page" doc:"Page number (1-based)"`
	Limit         int     `query:"limit" doc:"Page size (max 100)"`
}

// BookmarkIDInput identifies a bookmark by path parameter.
type BookmarkIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Bookmark ID"`
}

// CheckBookmarkURLInput contains the URL to check.
type CheckBookmarkURLInput struct {
	Authorization string `header:"Authorization"`
	URL           string `query:"url" required:"true" doc:"URL to check"`
}

// BookmarkResponse contains bookmark data in API responses.
type BookmarkResponse struct {
	ID            string        `json:"id" doc:"Bookmark ID"`
	URL           string        `json:"url" doc:"Normalized URL"`
	Domain        string        `json:"domain,omitempty" doc:"Site domain"`
	Title         string        `json:"title" doc:"Title"`
	Description   string        `json:"description,omitempty" doc:"Short description"`
	Notes         string        `json:"notes,omitempty" doc:"Personal notes"`
	FaviconURL    string        `json:"favicon_url,omitempty" doc:"Favicon URL"`
	FolderID      *string       `json:"folder_id,omitempty" doc:"Containing folder ID"`
	Tags          []TagResponse `json:"tags" doc:"Assigned tags"`
	IsFavorite    bool          `json:"is_favorite" doc:"Favorite flag"`
	IsArchived    bool          `json:"is_archived" doc:"Archived flag"`
	VisitCount    int           `json:"visit_count" doc:"Recorded visits"`
	LastVisitedAt *time.Time    `json:"last_visited_at,omitempty" doc:"Last recorded visit"`
	CreatedAt     time.Time     `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time     `json:"updated_at" doc:"Last update time"`
}

// BookmarkOutput wraps a bookmark response for Huma.
type BookmarkOutput struct {
	Body BookmarkResponse
}

// ListBookmarksResponse contains a page of bookmarks.
type ListBookmarksResponse struct {
	Bookmarks  []BookmarkResponse `json:"bookmarks" doc:"Bookmarks on this page"`
	Total      int                `json:"total" doc:"Total matching bookmarks"`
	Page       int                `json:"page" doc:"Current page"`
	Limit      int                `json:"limit" doc:"Page size"`
	TotalPages int                `json:"total_pages" doc:"Total page count"`
}

// ListBookmarksOutput wraps the list response for Huma.
type ListBookmarksOutput struct {
	Body ListBookmarksResponse
}

// CheckBookmarkURLResponse reports whether a URL is already saved.
type CheckBookmarkURLResponse struct {
	Exists   bool              `json:"exists" doc:"Whether a live bookmark exists for this URL"`
	Bookmark *BookmarkResponse `json:"bookmark,omitempty" doc:"The existing bookmark, when present"`
}

// CheckBookmarkURLOutput wraps the check response for Huma.
type CheckBookmarkURLOutput struct {
	Body CheckBookmarkURLResponse
}

// === Handlers ===

func (s *Server) handleCreateBookmark(ctx context.Context, input *CreateBookmarkInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.CreateBookmark(ctx, user.ID, user.OrganizationID, service.CreateBookmarkRequest{
		URL:         input.Body.URL,
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Notes:       input.Body.Notes,
		FaviconURL:  input.Body.FaviconURL,
		FolderID:    input.Body.FolderID,
		Tags:        input.Body.Tags,
		IsFavorite:  input.Body.IsFavorite,
	})
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

func (s *Server) handleListBookmarks(ctx context.Context, input *ListBookmarksInput) (*ListBookmarksOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	req := service.ListBookmarksRequest{
		Tags:       input.Tags,
		Search:     input.Search,
		IsFavorite: input.IsFavorite,
		IsArchived: input.IsArchived,
		Domain:     input.Domain,
		Page:       input.Page,
		Limit:      input.Limit,
	}
	if input.FolderID != "" {
		req.FolderID = &input.FolderID
	}

	result, err := s.services.Bookmark.ListBookmarks(ctx, user.ID, req)
	if err != nil {
		return nil, err
	}

	bookmarks := make([]BookmarkResponse, 0, len(result.Items))
	for _, bm := range result.Items {
		bookmarks = append(bookmarks, mapBookmarkResponse(bm))
	}

	return &ListBookmarksOutput{
		Body: ListBookmarksResponse{
			Bookmarks:  bookmarks,
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		},
	}, nil
}

func (s *Server) handleCheckBookmarkURL(ctx context.Context, input *CheckBookmarkURLInput) (*CheckBookmarkURLOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.CheckURL(ctx, user.ID, input.URL)
	if err != nil {
		return nil, err
	}

	resp := CheckBookmarkURLResponse{Exists: bookmark != nil}
	if bookmark != nil {
		mapped := mapBookmarkResponse(bookmark)
		resp.Bookmark = &mapped
	}

	return &CheckBookmarkURLOutput{Body: resp}, nil
}

func (s *Server) handleGetBookmark(ctx context.Context, input *BookmarkIDInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.GetBookmark(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

func (s *Server) handleUpdateBookmark(ctx context.Context, input *UpdateBookmarkInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.UpdateBookmark(ctx, user.ID, user.OrganizationID, input.ID, service.UpdateBookmarkRequest{
		URL:         input.Body.URL,
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Notes:       input.Body.Notes,
		FaviconURL:  input.Body.FaviconURL,
		FolderID:    input.Body.FolderID,
		ClearFolder: input.Body.ClearFolder,
		Tags:        input.Body.Tags,
		IsFavorite:  input.Body.IsFavorite,
		IsArchived:  input.Body.IsArchived,
	})
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

func (s *Server) handleDeleteBookmark(ctx context.Context, input *BookmarkIDInput) (*MessageOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Bookmark.DeleteBookmark(ctx, user.ID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Bookmark deleted"}}, nil
}

func (s *Server) handleToggleBookmarkFavorite(ctx context.Context, input *BookmarkIDInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.ToggleFavorite(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

func (s *Server) handleToggleBookmarkArchive(ctx context.Context, input *BookmarkIDInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.ToggleArchive(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

func (s *Server) handleRecordBookmarkVisit(ctx context.Context, input *BookmarkIDInput) (*BookmarkOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	bookmark, err := s.services.Bookmark.RecordVisit(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: mapBookmarkResponse(bookmark)}, nil
}

// mapBookmarkResponse converts a domain bookmark to the API shape.
func mapBookmarkResponse(bm *domain.Bookmark) BookmarkResponse {
	tags := make([]TagResponse, 0, len(bm.Tags))
	for _, tag := range bm.Tags {
		tags = append(tags, mapTagResponse(tag))
	}

	return BookmarkResponse{
		ID:            bm.ID,
		URL:           bm.URL,
		Domain:        bm.Domain,
		Title:         bm.Title,
		Description:   bm.Description,
		Notes:         bm.Notes,
		FaviconURL:    bm.FaviconURL,
		FolderID:      bm.FolderID,
		Tags:          tags,
		IsFavorite:    bm.IsFavorite,
		IsArchived:    bm.IsArchived,
		VisitCount:    bm.VisitCount,
		LastVisitedAt: bm.LastVisitedAt,
		CreatedAt:     bm.CreatedAt,
		UpdatedAt:     bm.UpdatedAt,
	}
}
