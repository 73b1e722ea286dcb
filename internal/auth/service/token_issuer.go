package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/config"
	"github.com/mentis-project/accounts/internal/common/constants"
	commoncrypto "github.com/mentis-project/accounts/internal/common/crypto"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
)

// tokenClaims is the JWT payload shared by access and refresh tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Type domain.TokenType `json:"typ"`
}

func signingKey(cfg config.TokenConfig) ([]byte, error) {
	if len(cfg.Secret) < constants.JWTSecretMinLength {
		return nil, ErrSigningKeyMissing
	}
	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)
	return key, nil
}

type TokenIssuer struct {
	key         []byte
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewTokenIssuer(cfg config.TokenConfig, idGenerator commoncrypto.IDGenerator, clk clock.Clock) (*TokenIssuer, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token ttls must be positive: access=%v refresh=%v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	return &TokenIssuer{
		key:         key,
		issuer:      cfg.Issuer,
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		idGenerator: idGenerator,
		clock:       clk,
	}, nil
}

// Issue mints a fresh access/refresh pair for user. Both tokens share the
// same issued-at instant.
func (ti *TokenIssuer) Issue(user userdomain.User) (domain.TokenPair, error) {
	now := ti.clock.Now()

	access, _, accessExp, err := ti.mint(string(user.ID), domain.AccessToken, now, ti.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, refreshID, refreshExp, err := ti.mint(string(user.ID), domain.RefreshToken, now, ti.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	recordTokensIssued()

	return domain.TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		RefreshID:        refreshID,
	}, nil
}

func (ti *TokenIssuer) mint(subject string, typ domain.TokenType, now time.Time, ttl time.Duration) (string, string, time.Time, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    ti.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        jti,
		},
		Type: typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, jti, expiresAt.Time, nil
}
