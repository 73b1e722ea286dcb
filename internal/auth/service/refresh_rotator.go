package service

import (
	"context"

	"github.com/mentis-project/accounts/internal/auth/domain"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/observability/metrics"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
)

// Revoker consumes a refresh token id. Only one caller per id sees true.
type Revoker interface {
	Revoke(ctx context.Context, claims domain.Claims) (bool, error)
}

type Issuer interface {
	Issue(user userdomain.User) (domain.TokenPair, error)
}

// RefreshRotator exchanges a verified refresh token for a new pair. The old
// token is consumed first, so of several concurrent exchanges of one token
// exactly one succeeds.
type RefreshRotator struct {
	ledger Revoker
	issuer Issuer
	log    *logger.Logger
}

func NewRefreshRotator(ledger Revoker, issuer Issuer, log *logger.Logger) *RefreshRotator {
	return &RefreshRotator{ledger: ledger, issuer: issuer, log: log}
}

func (r *RefreshRotator) Rotate(ctx context.Context, presented domain.Claims, user userdomain.User) (domain.TokenPair, error) {
	consumed, err := r.ledger.Revoke(ctx, presented)
	if err != nil {
		r.log.WithFields(ctx, logger.Fields{
			"user_id": presented.Subject,
			"action":  "refresh_rotate_revoke_failed",
		}).Errorf("refresh rotation failed: %v", err)
		return domain.TokenPair{}, err
	}
	if !consumed {
		metrics.RefreshTokensReplayed.Inc()
		r.log.WithFields(ctx, logger.Fields{
			"user_id": presented.Subject,
			"jti":     presented.TokenID,
			"action":  "refresh_token_replayed",
		}).Warn("refresh token already consumed")
		return domain.TokenPair{}, commonerrors.ErrUnauthorized
	}

	pair, err := r.issuer.Issue(user)
	if err != nil {
		r.log.WithFields(ctx, logger.Fields{
			"user_id": presented.Subject,
			"action":  "refresh_rotate_issue_failed",
		}).Errorf("refresh rotation failed to issue tokens: %v", err)
		return domain.TokenPair{}, commonerrors.ErrInternalError.WithCause(err)
	}

	metrics.RefreshTokensRotated.Inc()
	return pair, nil
}
