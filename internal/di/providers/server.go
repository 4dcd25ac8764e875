package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/stashmark/stashmark-server/internal/api"
	"github.com/stashmark/stashmark-server/internal/config"
	"github.com/stashmark/stashmark-server/internal/logger"
	"github.com/stashmark/stashmark-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	authService := do.MustInvoke[*service.AuthService](i)
	bookmarkService := do.MustInvoke[*service.BookmarkService](i)
	folderService := do.MustInvoke[*service.FolderService](i)
	tagService := do.MustInvoke[*service.TagService](i)
	organizationService := do.MustInvoke[*service.OrganizationService](i)

	services := &api.Services{
		Auth:         authService,
		Bookmark:     bookmarkService,
		Folder:       folderService,
		Tag:          tagService,
		Organization: organizationService,
	}

	limiter := api.NewAuthRateLimiter(cfg.Auth.RateLimitPerMinute, time.Minute, cfg.Auth.RateLimitBurst)

	handler := api.NewServer(storeHandle.Store, services, cfg, limiter, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
