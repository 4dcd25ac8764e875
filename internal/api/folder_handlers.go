package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/service"
)

func (s *Server) registerFolderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createFolder",
		Method:      http.MethodPost,
		Path:        "/api/v1/folders",
		Summary:     "Create folder",
		Description: "Creates a folder at the end of its sibling group",
		Tags:        []string{"Folders"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateFolder)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFolders",
		Method:      http.MethodGet,
		Path:        "/api/v1/folders",
		Summary:     "List folders",
		Description: "Returns the user's folders as a nested tree",
		Tags:        []string{"Folders"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListFolders)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFolder",
		Method:      http.MethodGet,
		Path:        "/api/v1/folders/{id}",
		Summary:     "Get folder",
		Description: "Returns a folder by ID",
		Tags:        []string{"Folders"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetFolder)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateFolder",
		Method:      http.MethodPut,
		Path:        "/api/v1/folders/{id}",
		Summary:     "Update folder",
		Description: "Renames, recolors, or moves a folder within the tree",
		Tags:        []string{"Folders"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateFolder)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteFolder",
		Method:      http.MethodDelete,
		Path:        "/api/v1/folders/{id}",
		Summary:     "Delete folder",
		Description: "Deletes a folder and its subfolders. Bookmarks move to the root.",
		Tags:        []string{"Folders"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteFolder)
}

// === DTOs ===

// CreateFolderRequest is the request body for folder creation.
type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=100" doc:"Folder name"`
	ParentID *string `json:"parent_id,omitempty" doc:"Parent folder ID (root when omitted)"`
	Color    string  `json:"color,omitempty" validate:"omitempty,max=20" doc:"Display color"`
	Icon     string  `json:"icon,omitempty" validate:"omitempty,max=50" doc:"Display icon"`
}

// CreateFolderInput wraps the create request for Huma.
type CreateFolderInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateFolderRequest
}

// UpdateFolderRequest is the request body for folder updates.
type UpdateFolderRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100" doc:"Folder name"`
	ParentID    *string `json:"parent_id,omitempty" doc:"New parent folder ID"`
	ClearParent bool    `json:"clear_parent,omitempty" doc:"Move the folder to the root"`
	Position    *int    `json:"position,omitempty" doc:"Position within the sibling group"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=20" doc:"Display color"`
	Icon        *string `json:"icon,omitempty" validate:"omitempty,max=50" doc:"Display icon"`
}

// UpdateFolderInput wraps the update request for Huma.
type UpdateFolderInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Folder ID"`
	Body          UpdateFolderRequest
}

// FolderIDInput identifies a folder by path parameter.
type FolderIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Folder ID"`
}

// ListFoldersInput carries the auth header for listing folders.
type ListFoldersInput struct {
	Authorization string `header:"Authorization"`
}

// FolderResponse contains folder data in API responses.
type FolderResponse struct {
	ID        string           `json:"id" doc:"Folder ID"`
	Name      string           `json:"name" doc:"Folder name"`
	ParentID  *string          `json:"parent_id,omitempty" doc:"Parent folder ID"`
	Position  int              `json:"position" doc:"Position within the sibling group"`
	Color     string           `json:"color,omitempty" doc:"Display color"`
	Icon      string           `json:"icon,omitempty" doc:"Display icon"`
	Children  []FolderResponse `json:"children" doc:"Nested subfolders"`
	CreatedAt time.Time        `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time        `json:"updated_at" doc:"Last update time"`
}

// FolderOutput wraps a folder response for Huma.
type FolderOutput struct {
	Body FolderResponse
}

// ListFoldersResponse contains the folder tree.
type ListFoldersResponse struct {
	Folders []FolderResponse `json:"folders" doc:"Root folders with nested children"`
}

// ListFoldersOutput wraps the list response for Huma.
type ListFoldersOutput struct {
	Body ListFoldersResponse
}

// === Handlers ===

func (s *Server) handleCreateFolder(ctx context.Context, input *CreateFolderInput) (*FolderOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	folder, err := s.services.Folder.CreateFolder(ctx, user.ID, user.OrganizationID, service.CreateFolderRequest{
		Name:     input.Body.Name,
		ParentID: input.Body.ParentID,
		Color:    input.Body.Color,
		Icon:     input.Body.Icon,
	})
	if err != nil {
		return nil, err
	}

	return &FolderOutput{Body: mapFolderResponse(folder)}, nil
}

func (s *Server) handleListFolders(ctx context.Context, input *ListFoldersInput) (*ListFoldersOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tree, err := s.services.Folder.ListFolderTree(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	folders := make([]FolderResponse, 0, len(tree))
	for _, folder := range tree {
		folders = append(folders, mapFolderResponse(folder))
	}

	return &ListFoldersOutput{Body: ListFoldersResponse{Folders: folders}}, nil
}

func (s *Server) handleGetFolder(ctx context.Context, input *FolderIDInput) (*FolderOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	folder, err := s.services.Folder.GetFolder(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &FolderOutput{Body: mapFolderResponse(folder)}, nil
}

func (s *Server) handleUpdateFolder(ctx context.Context, input *UpdateFolderInput) (*FolderOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	folder, err := s.services.Folder.UpdateFolder(ctx, user.ID, input.ID, service.UpdateFolderRequest{
		Name:        input.Body.Name,
		ParentID:    input.Body.ParentID,
		ClearParent: input.Body.ClearParent,
		Position:    input.Body.Position,
		Color:       input.Body.Color,
		Icon:        input.Body.Icon,
	})
	if err != nil {
		return nil, err
	}

	return &FolderOutput{Body: mapFolderResponse(folder)}, nil
}

func (s *Server) handleDeleteFolder(ctx context.Context, input *FolderIDInput) (*MessageOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Folder.DeleteFolder(ctx, user.ID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Folder deleted"}}, nil
}

// mapFolderResponse converts a domain folder, children included, to the API shape.
func mapFolderResponse(folder *domain.Folder) FolderResponse {
	children := make([]FolderResponse, 0, len(folder.Children))
	for _, child := range folder.Children {
		children = append(children, mapFolderResponse(child))
	}

	return FolderResponse{
		ID:        folder.ID,
		Name:      folder.Name,
		ParentID:  folder.ParentID,
		Position:  folder.Position,
		Color:     folder.Color,
		Icon:      folder.Icon,
		Children:  children,
		CreatedAt: folder.CreatedAt,
		UpdatedAt: folder.UpdatedAt,
	}
}
