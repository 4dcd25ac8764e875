package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stashmark/stashmark-server/internal/domain"
	"github.com/stashmark/stashmark-server/internal/service"
)

func (s *Server) registerOrganizationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getOrganization",
		Method:      http.MethodGet,
		Path:        "/api/v1/organization",
		Summary:     "Get organization",
		Description: "Returns the current user's organization",
		Tags:        []string{"Organization"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetOrganization)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateOrganization",
		Method:      http.MethodPatch,
		Path:        "/api/v1/organization",
		Summary:     "Update organization",
		Description: "Updates organization settings. Owners only.",
		Tags:        []string{"Organization"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateOrganization)
}

// === DTOs ===

// GetOrganizationInput carries the auth header.
type GetOrganizationInput struct {
	Authorization string `header:"Authorization"`
}

// UpdateOrganizationRequest is the request body for organization updates.
type UpdateOrganizationRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=100" doc:"Organization name"`
}

// UpdateOrganizationInput wraps the update request for Huma.
type UpdateOrganizationInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateOrganizationRequest
}

// OrganizationResponse contains organization data in API responses.
type OrganizationResponse struct {
	ID        string    `json:"id" doc:"Organization ID"`
	Name      string    `json:"name" doc:"Organization name"`
	Slug      string    `json:"slug" doc:"URL-safe slug, stable across renames"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// OrganizationOutput wraps an organization response for Huma.
type OrganizationOutput struct {
	Body OrganizationResponse
}

// === Handlers ===

func (s *Server) handleGetOrganization(ctx context.Context, input *GetOrganizationInput) (*OrganizationOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	org, err := s.services.Organization.GetOrganization(ctx, user)
	if err != nil {
		return nil, err
	}

	return &OrganizationOutput{Body: mapOrganizationResponse(org)}, nil
}

func (s *Server) handleUpdateOrganization(ctx context.Context, input *UpdateOrganizationInput) (*OrganizationOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	org, err := s.services.Organization.UpdateOrganization(ctx, user, service.UpdateOrganizationRequest{
		Name: input.Body.Name,
	})
	if err != nil {
		return nil, err
	}

	return &OrganizationOutput{Body: mapOrganizationResponse(org)}, nil
}

// mapOrganizationResponse converts a domain organization to the API shape.
func mapOrganizationResponse(org *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
		UpdatedAt: org.UpdatedAt,
	}
}
