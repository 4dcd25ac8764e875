package api

import (
	"github.com/stashmark/stashmark-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth         *service.AuthService
	Bookmark     *service.BookmarkService
	Folder       *service.FolderService
	Tag          *service.TagService
	Organization *service.OrganizationService
}
