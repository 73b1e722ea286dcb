package cleanup

import (
	"context"
	"time"

	"github.com/mentis-project/accounts/internal/common/db"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/observability/metrics"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor purges revocation ledger rows whose token has expired on its own;
// such tokens are rejected by expiry alone.
type Janitor struct {
	repo     ExpiredDeleter
	interval time.Duration
	retry    db.RetryConfig
	log      *logger.Logger
}

func NewJanitor(repo ExpiredDeleter, interval time.Duration, log *logger.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		repo:     repo,
		interval: interval,
		retry:    db.DefaultRetryConfig,
		log:      log,
	}
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Purge(ctx)
		}
	}
}

func (j *Janitor) Purge(ctx context.Context) int64 {
	var deleted int64
	err := db.RetryWithBackoff(ctx, j.log, j.retry, func() error {
		var err error
		deleted, err = j.repo.DeleteExpired(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			j.log.WithFields(ctx, logger.Fields{"action": "ledger_cleanup"}).Errorf("revoked token cleanup failed: %v", err)
		}
		return 0
	}
	if deleted > 0 {
		metrics.RevokedTokensCleanupDeleted.Add(float64(deleted))
		j.log.WithFields(ctx, logger.Fields{"action": "ledger_cleanup"}).Infof("revoked token cleanup: deleted %d expired entries", deleted)
	}
	return deleted
}
