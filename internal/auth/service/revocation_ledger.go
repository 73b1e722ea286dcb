package service

import (
	"context"

	"github.com/mentis-project/accounts/internal/auth/domain"
	authrepo "github.com/mentis-project/accounts/internal/auth/repository"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/resilience"
)

// RevocationLedger fronts the revoked token store with the in-process cache
// and the store circuit breaker.
type RevocationLedger struct {
	repo    authrepo.RevokedTokenRepository
	cache   *RevocationCache
	breaker *resilience.CircuitBreaker
	clock   clock.Clock
}

func NewRevocationLedger(repo authrepo.RevokedTokenRepository, cache *RevocationCache, breaker *resilience.CircuitBreaker, clk clock.Clock) *RevocationLedger {
	return &RevocationLedger{repo: repo, cache: cache, breaker: breaker, clock: clk}
}

// Revoke records the token id in the ledger until the token's natural
// expiry. It returns false when the id was already present.
func (l *RevocationLedger) Revoke(ctx context.Context, claims domain.Claims) (bool, error) {
	var inserted bool
	err := l.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = l.repo.Revoke(ctx, domain.RevocationEntry{
			TokenID:   claims.TokenID,
			UserID:    claims.Subject,
			ExpiresAt: claims.ExpiresAt,
			RevokedAt: l.clock.Now(),
		})
		return err
	})
	if err != nil {
		return false, handleStoreError(err)
	}

	l.cache.Add(claims.TokenID, claims.ExpiresAt)
	return inserted, nil
}

func (l *RevocationLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if l.cache.Contains(jti) {
		return true, nil
	}

	var revoked bool
	err := l.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		revoked, err = l.repo.IsRevoked(ctx, jti)
		return err
	})
	if err != nil {
		return false, handleStoreError(err)
	}
	return revoked, nil
}
