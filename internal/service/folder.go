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
)

// FolderService manages a user's folder hierarchy.
type FolderService struct {
	store  store.Store
	logger *slog.Logger
}

// NewFolderService creates a new folder service.
func NewFolderService(store store.Store, logger *slog.Logger) *FolderService {
	return &FolderService{
		store:  store,
		logger: logger,
	}
}

// CreateFolderRequest contains data for a new folder.
type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=100"`
	ParentID *string `json:"parentId,omitempty"`
	Color    string  `json:"color" validate:"omitempty,max=20"`
	Icon     string  `json:"icon" validate:"omitempty,max=50"`
}

// UpdateFolderRequest contains mutable folder fields. ClearParent moves
// the folder to the root; otherwise a nil ParentID leaves it in place.
type UpdateFolderRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	ParentID    *string `json:"parentId,omitempty"`
	ClearParent bool    `json:"clearParent,omitempty"`
	Position    *int    `json:"position,omitempty" validate:"omitempty,min=0"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=20"`
	Icon        *string `json:"icon,omitempty" validate:"omitempty,max=50"`
}

// CreateFolder creates a folder at the end of its sibling group.
func (s *FolderService) CreateFolder(ctx context.Context, userID, orgID string, req CreateFolderRequest) (*domain.Folder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	if req.ParentID != nil {
		if _, err := s.store.GetFolder(ctx, userID, *req.ParentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.NotFound("parent folder not found")
			}
			return nil, fmt.Errorf("get parent folder: %w", err)
		}
	}

	maxPos, err := s.store.MaxSiblingPosition(ctx, userID, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("max sibling position: %w", err)
	}

	folderID, err := id.Generate("fld")
	if err != nil {
		return nil, fmt.Errorf("generate folder ID: %w", err)
	}

	now := time.Now()
	folder := &domain.Folder{
		ID:             folderID,
		UserID:         userID,
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		ParentID:       req.ParentID,
		Position:       maxPos + 1,
		Color:          req.Color,
		Icon:           req.Icon,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Folder created",
			"folder_id", folder.ID,
			"user_id", userID,
		)
	}

	return folder, nil
}

// GetFolder returns a single folder.
func (s *FolderService) GetFolder(ctx context.Context, userID, folderID string) (*domain.Folder, error) {
	folder, err := s.store.GetFolder(ctx, userID, folderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("folder not found")
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// ListFolderTree returns the user's folders as a nested tree.
// Roots and each sibling group keep their position order.
func (s *FolderService) ListFolderTree(ctx context.Context, userID string) ([]*domain.Folder, error) {
	folders, err := s.store.ListFolders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return buildFolderTree(folders), nil
}

// UpdateFolder applies partial changes, including moves within the tree.
func (s *FolderService) UpdateFolder(ctx context.Context, userID, folderID string, req UpdateFolderRequest) (*domain.Folder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	folder, err := s.store.GetFolder(ctx, userID, folderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("folder not found")
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domainerrors.Validation("name cannot be empty")
		}
		folder.Name = name
	}

	if req.ClearParent {
		if folder.ParentID != nil {
			folder.ParentID = nil
			folder.Position, err = s.nextPosition(ctx, userID, nil)
			if err != nil {
				return nil, err
			}
		}
	} else if req.ParentID != nil && (folder.ParentID == nil || *folder.ParentID != *req.ParentID) {
		if err := s.validateMove(ctx, userID, folder, *req.ParentID); err != nil {
			return nil, err
		}
		folder.ParentID = req.ParentID
		folder.Position, err = s.nextPosition(ctx, userID, req.ParentID)
		if err != nil {
			return nil, err
		}
	}

	if req.Position != nil {
		folder.Position = *req.Position
	}
	if req.Color != nil {
		folder.Color = *req.Color
	}
	if req.Icon != nil {
		folder.Icon = *req.Icon
	}

	folder.Touch()
	if err := s.store.UpdateFolder(ctx, folder); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("folder not found")
		}
		return nil, fmt.Errorf("update folder: %w", err)
	}

	return folder, nil
}

// DeleteFolder removes a folder and its descendants. Bookmarks in the
// deleted folders are kept and moved to the root.
func (s *FolderService) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if err := s.store.DeleteFolder(ctx, userID, folderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("folder not found")
		}
		return fmt.Errorf("delete folder: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Folder deleted",
			"folder_id", folderID,
			"user_id", userID,
		)
	}
	return nil
}

// validateMove rejects moves that would make a folder its own ancestor.
func (s *FolderService) validateMove(ctx context.Context, userID string, folder *domain.Folder, newParentID string) error {
	if newParentID == folder.ID {
		return domainerrors.Forbidden("a folder cannot be its own parent")
	}

	parent, err := s.store.GetFolder(ctx, userID, newParentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("parent folder not found")
		}
		return fmt.Errorf("get parent folder: %w", err)
	}

	// Walk up from the new parent; hitting the moved folder means the
	// target is one of its descendants.
	for parent.ParentID != nil {
		if *parent.ParentID == folder.ID {
			return domainerrors.Forbidden("cannot move a folder into its own descendant")
		}
		parent, err = s.store.GetFolder(ctx, userID, *parent.ParentID)
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
	}
	return nil
}

func (s *FolderService) nextPosition(ctx context.Context, userID string, parentID *string) (int, error) {
	maxPos, err := s.store.MaxSiblingPosition(ctx, userID, parentID)
	if err != nil {
		return 0, fmt.Errorf("max sibling position: %w", err)
	}
	return maxPos + 1, nil
}

// buildFolderTree nests a flat, position-ordered folder list. Folders
// whose parent is missing are promoted to roots rather than dropped.
func buildFolderTree(folders []*domain.Folder) []*domain.Folder {
	byID := make(map[string]*domain.Folder, len(folders))
	for _, f := range folders {
		f.Children = []*domain.Folder{}
		byID[f.ID] = f
	}

	roots := []*domain.Folder{}
	for _, f := range folders {
		if f.ParentID == nil {
			roots = append(roots, f)
			continue
		}
		parent, ok := byID[*f.ParentID]
		if !ok {
			roots = append(roots, f)
			continue
		}
		parent.Children = append(parent.Children, f)
	}
	return roots
}
