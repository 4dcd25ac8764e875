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

// OrganizationService manages organization settings.
type OrganizationService struct {
	store  store.Store
	logger *slog.Logger
}

// NewOrganizationService creates a new organization service.
func NewOrganizationService(store store.Store, logger *slog.Logger) *OrganizationService {
	return &OrganizationService{
		store:  store,
		logger: logger,
	}
}

// UpdateOrganizationRequest contains mutable organization fields.
type UpdateOrganizationRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

// GetOrganization returns the caller's organization.
func (s *OrganizationService) GetOrganization(ctx context.Context, user *domain.User) (*domain.Organization, error) {
	org, err := s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("organization not found")
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// UpdateOrganization renames the caller's organization. Only owners may
// change organization settings. The slug stays stable across renames.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, user *domain.User, req UpdateOrganizationRequest) (*domain.Organization, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}
	if !user.IsOwner() {
		return nil, domainerrors.Forbidden("only organization owners can update settings")
	}

	org, err := s.GetOrganization(ctx, user)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domainerrors.Validation("name cannot be empty")
		}
		org.Name = name
	}

	org.Touch()
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Organization updated",
			"organization_id", org.ID,
			"user_id", user.ID,
		)
	}
	return org, nil
}
