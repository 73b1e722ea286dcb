package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/observability/metrics"
)

// RevocationCache remembers revoked refresh token ids until their natural
// expiry. It only ever answers "revoked"; a miss must fall through to the
// ledger store.
type RevocationCache struct {
	entries    sync.Map
	size       atomic.Int64
	maxEntries int64
	clock      clock.Clock
	log        *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewRevocationCache(ctx context.Context, clk clock.Clock, log *logger.Logger) *RevocationCache {
	cacheCtx, cancel := context.WithCancel(ctx)
	c := &RevocationCache{
		maxEntries: constants.RevocationCacheMaxEntries,
		clock:      clk,
		log:        log,
		ctx:        cacheCtx,
		cancel:     cancel,
	}

	go c.cleanup(constants.RevocationCacheCleanupInterval)

	return c
}

func (c *RevocationCache) Contains(jti string) bool {
	v, ok := c.entries.Load(jti)
	if !ok {
		return false
	}
	if c.clock.Now().Before(v.(time.Time)) {
		metrics.RevocationCacheHits.Inc()
		return true
	}
	c.remove(jti)
	return false
}

func (c *RevocationCache) Add(jti string, expiresAt time.Time) {
	if !c.clock.Now().Before(expiresAt) {
		return
	}
	if c.size.Load() >= c.maxEntries {
		return
	}
	if _, loaded := c.entries.LoadOrStore(jti, expiresAt); !loaded {
		metrics.RevocationCacheSize.Set(float64(c.size.Add(1)))
	}
}

func (c *RevocationCache) remove(jti string) {
	if _, loaded := c.entries.LoadAndDelete(jti); loaded {
		metrics.RevocationCacheSize.Set(float64(c.size.Add(-1)))
	}
}

func (c *RevocationCache) Len() int {
	return int(c.size.Load())
}

func (c *RevocationCache) purgeExpired() int {
	now := c.clock.Now()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if !now.Before(value.(time.Time)) {
			c.remove(key.(string))
			removed++
		}
		return true
	})
	return removed
}

func (c *RevocationCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if removed := c.purgeExpired(); removed > 0 {
				c.log.Debugf("revocation cache cleaned up %d expired entries", removed)
			}
		}
	}
}

func (c *RevocationCache) Close() {
	c.cancel()
}
