package cleanup

import (
	"context"
	"time"

	authrepo "github.com/ysamarin/postline/backend/internal/auth/repository"
	"github.com/ysamarin/postline/backend/internal/common/constants"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	"github.com/ysamarin/postline/backend/internal/observability/metrics"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartCleanup sweeps expired rows out of a token store on a fixed interval
// until ctx is cancelled. Meant to run as a goroutine per store.
func StartCleanup(ctx context.Context, repo ExpiredDeleter, log *logger.Logger, store string) {
	ticker := time.NewTicker(constants.TokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Errorf("%s cleanup failed: %v", store, err)
				continue
			}
			if deleted > 0 {
				metrics.TokenCleanupDeleted.WithLabelValues(store).Add(float64(deleted))
				log.Infof("%s cleanup: deleted %d expired rows", store, deleted)
			}
		}
	}
}

func StartRefreshTokenCleanup(ctx context.Context, repo authrepo.RefreshTokenRepository, log *logger.Logger) {
	StartCleanup(ctx, repo, log, "refresh_tokens")
}

func StartRevokedTokenCleanup(ctx context.Context, repo authrepo.RevokedTokenRepository, log *logger.Logger) {
	StartCleanup(ctx, repo, log, "revoked_tokens")
}
