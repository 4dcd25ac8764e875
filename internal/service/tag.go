package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stashmark/stashmark-server/internal/domain"
	domainerrors "github.com/stashmark/stashmark-server/internal/errors"
	"github.com/stashmark/stashmark-server/internal/store"
)

// TagService manages a user's tags. Tags are created implicitly when
// bookmarks reference them; this service handles the rest of their
// lifecycle.
type TagService struct {
	store  store.Store
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store store.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  store,
		logger: logger,
	}
}

// CreateTagRequest contains the fields for creating a tag directly,
// ahead of any bookmark referencing it.
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=50"`
	Color string `json:"color,omitempty" validate:"omitempty,max=20"`
}

// UpdateTagRequest contains mutable tag fields.
type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color,omitempty" validate:"omitempty,max=20"`
}

// CreateTag creates a tag with no bookmarks attached. An existing tag
// with the same name is a conflict rather than a silent reuse.
func (s *TagService) CreateTag(ctx context.Context, userID, orgID string, req CreateTagRequest) (*domain.Tag, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domainerrors.Validation("name cannot be empty")
	}

	tag, created, err := s.store.FindOrCreateTag(ctx, userID, orgID, name)
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	if !created {
		return nil, domainerrors.Conflict("a tag with this name already exists")
	}

	if req.Color != "" {
		tag.Color = req.Color
		tag.Touch()
		if err := s.store.UpdateTag(ctx, tag); err != nil {
			return nil, fmt.Errorf("set tag color: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("Tag created",
			"tag_id", tag.ID,
			"user_id", userID,
		)
	}
	return tag, nil
}

// ListTags returns all of a user's tags with live usage counts,
// ordered by name.
func (s *TagService) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// GetTag returns a single tag.
func (s *TagService) GetTag(ctx context.Context, userID, tagID string) (*domain.Tag, error) {
	tag, err := s.store.GetTag(ctx, userID, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("tag not found")
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// UpdateTag renames or recolors a tag. Renaming onto an existing tag
// name is rejected; merging happens on the bookmark side.
func (s *TagService) UpdateTag(ctx context.Context, userID, tagID string, req UpdateTagRequest) (*domain.Tag, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	tag, err := s.store.GetTag(ctx, userID, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("tag not found")
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domainerrors.Validation("name cannot be empty")
		}
		tag.Name = name
	}
	if req.Color != nil {
		tag.Color = *req.Color
	}

	tag.Touch()
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("a tag with this name already exists")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("tag not found")
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}

	return tag, nil
}

// DeleteTag removes a tag from every bookmark and deletes it.
func (s *TagService) DeleteTag(ctx context.Context, userID, tagID string) error {
	if err := s.store.DeleteTag(ctx, userID, tagID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("tag not found")
		}
		return fmt.Errorf("delete tag: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Tag deleted",
			"tag_id", tagID,
			"user_id", userID,
		)
	}
	return nil
}
