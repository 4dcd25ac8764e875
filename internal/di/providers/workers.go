package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/stashmark/stashmark-server/internal/logger"
	"github.com/stashmark/stashmark-server/internal/service"
)

// TokenCleanupJob runs periodic expired refresh token cleanup.
type TokenCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *TokenCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideTokenCleanupJob provides the periodic refresh token cleanup job.
func ProvideTokenCleanupJob(i do.Injector) (*TokenCleanupJob, error) {
	authService := do.MustInvoke[*service.AuthService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		// Initial cleanup on startup
		if count, err := authService.CleanupExpiredTokens(ctx); err != nil {
			log.Warn("Initial token cleanup failed", "error", err)
		} else if count > 0 {
			log.Info("Initial token cleanup completed", "deleted", count)
		}

		for {
			select {
			case <-ticker.C:
				if count, err := authService.CleanupExpiredTokens(ctx); err != nil {
					log.Warn("Token cleanup failed", "error", err)
				} else if count > 0 {
					log.Info("Token cleanup completed", "deleted", count)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Token cleanup job started")

	return &TokenCleanupJob{cancel: cancel}, nil
}
