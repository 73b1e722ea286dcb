package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/config"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/common/jwtverify"
	"github.com/mentis-project/accounts/internal/common/logger"
)

// RevocationChecker answers whether a refresh token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenVerifier struct {
	key     []byte
	issuer  string
	ledger  RevocationChecker
	clock   clock.Clock
	log     *logger.Logger
	methods []string
}

func NewTokenVerifier(cfg config.TokenConfig, ledger RevocationChecker, clk clock.Clock, log *logger.Logger) (*TokenVerifier, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}
	return &TokenVerifier{
		key:     key,
		issuer:  cfg.Issuer,
		ledger:  ledger,
		clock:   clk,
		log:     log,
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}, nil
}

// Verify returns the claims of raw when it is a well-formed, unexpired token
// of the expected type signed with the server key. Refresh tokens must also
// be absent from the revocation ledger. Every rejection is ErrUnauthorized;
// the cause is only logged.
func (v *TokenVerifier) Verify(ctx context.Context, raw string, expected domain.TokenType) (domain.Claims, error) {
	claims, err := v.verify(ctx, raw, expected)
	if err != nil {
		if errors.Is(err, errLedgerUnavailable) {
			recordVerification(expected, resultError)
			return domain.Claims{}, handleStoreError(err)
		}
		recordVerification(expected, resultInvalid)
		v.log.WithFields(ctx, logger.Fields{
			"action":     "token_rejected",
			"token_type": string(expected),
		}).Warnf("token rejected: %v", err)
		return domain.Claims{}, commonerrors.ErrUnauthorized
	}
	recordVerification(expected, resultSuccess)
	return claims, nil
}

var errLedgerUnavailable = errors.New("revocation ledger unavailable")

func (v *TokenVerifier) verify(ctx context.Context, raw string, expected domain.TokenType) (domain.Claims, error) {
	if !expected.Valid() {
		return domain.Claims{}, fmt.Errorf("unknown expected token type %q", expected)
	}
	if raw == "" {
		return domain.Claims{}, errors.New("empty token")
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods(v.methods),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return domain.Claims{}, err
	}

	if tc.Subject == "" || tc.ID == "" || tc.IssuedAt == nil {
		return domain.Claims{}, errors.New("missing required claims")
	}
	if !tc.Type.Valid() || tc.Type != expected {
		return domain.Claims{}, fmt.Errorf("token type %q, expected %q", tc.Type, expected)
	}

	claims := domain.Claims{
		Subject:   tc.Subject,
		TokenID:   tc.ID,
		Type:      tc.Type,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}

	if expected == domain.RefreshToken {
		revoked, err := v.ledger.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return domain.Claims{}, fmt.Errorf("%w: %w", errLedgerUnavailable, err)
		}
		if revoked {
			return domain.Claims{}, fmt.Errorf("refresh token %s is revoked", claims.TokenID)
		}
	}

	return claims, nil
}

// VerifyAccessToken adapts Verify to the bearer middleware.
func (v *TokenVerifier) VerifyAccessToken(ctx context.Context, raw string) (jwtverify.Principal, error) {
	claims, err := v.Verify(ctx, raw, domain.AccessToken)
	if err != nil {
		return jwtverify.Principal{}, err
	}
	return jwtverify.Principal{
		UserID:    claims.Subject,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}
