package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
)

type revocationFunc func(ctx context.Context, jti string) (bool, error)

func (f revocationFunc) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return f(ctx, jti)
}

var notRevoked = revocationFunc(func(context.Context, string) (bool, error) { return false, nil })

func newIssuerVerifier(t *testing.T, ledger RevocationChecker) (*TokenIssuer, *TokenVerifier, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(testEpoch)
	issuer, err := NewTokenIssuer(testTokenConfig(), &sequenceIDs{}, clk)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewTokenVerifier(testTokenConfig(), ledger, clk, testLogger())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return issuer, verifier, clk
}

// splice keeps sigSource's header and signature around payloadSource's claims.
func splice(sigSource, payloadSource string) string {
	a := strings.Split(sigSource, ".")
	b := strings.Split(payloadSource, ".")
	return a[0] + "." + b[1] + "." + a[2]
}

func TestNewTokenIssuer_RejectsShortKey(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Secret = "short"

	if _, err := NewTokenIssuer(cfg, &sequenceIDs{}, clock.NewMockClock(testEpoch)); !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
	if _, err := NewTokenVerifier(cfg, notRevoked, clock.NewMockClock(testEpoch), testLogger()); !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing from verifier, got %v", err)
	}
}

func TestTokenIssuer_IssueClaims(t *testing.T) {
	issuer, verifier, _ := newIssuerVerifier(t, notRevoked)

	pair, err := issuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" || pair.Access == pair.Refresh {
		t.Fatalf("expected two distinct tokens, got %+v", pair)
	}
	if !pair.AccessExpiresAt.Equal(testEpoch.Add(5 * time.Minute)) {
		t.Errorf("unexpected access expiry %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(testEpoch.Add(24 * time.Hour)) {
		t.Errorf("unexpected refresh expiry %v", pair.RefreshExpiresAt)
	}

	access, err := verifier.Verify(context.Background(), pair.Access, domain.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	refresh, err := verifier.Verify(context.Background(), pair.Refresh, domain.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if access.Subject != "user-1" || refresh.Subject != "user-1" {
		t.Errorf("unexpected subjects %q %q", access.Subject, refresh.Subject)
	}
	if access.TokenID == refresh.TokenID {
		t.Error("tokens must carry distinct ids")
	}
	if refresh.TokenID != pair.RefreshID {
		t.Errorf("refresh id %q does not match claims %q", pair.RefreshID, refresh.TokenID)
	}
	if !access.IssuedAt.Equal(testEpoch) {
		t.Errorf("unexpected iat %v", access.IssuedAt)
	}
}

func TestTokenVerifier_ExpiresExactlyAtExp(t *testing.T) {
	issuer, verifier, clk := newIssuerVerifier(t, notRevoked)
	pair, err := issuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clk.SetTime(pair.AccessExpiresAt.Add(-time.Second))
	if _, err := verifier.Verify(context.Background(), pair.Access, domain.AccessToken); err != nil {
		t.Fatalf("token should be valid one second before expiry: %v", err)
	}

	clk.SetTime(pair.AccessExpiresAt)
	_, err = verifier.Verify(context.Background(), pair.Access, domain.AccessToken)
	if !errors.Is(err, commonerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized at exp, got %v", err)
	}

	clk.Advance(time.Hour)
	_, err = verifier.Verify(context.Background(), pair.Access, domain.AccessToken)
	if !errors.Is(err, commonerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after exp, got %v", err)
	}
}

func TestTokenVerifier_Rejections(t *testing.T) {
	issuer, verifier, _ := newIssuerVerifier(t, notRevoked)
	pair, err := issuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	otherCfg := testTokenConfig()
	otherCfg.Secret = strings.Repeat("x", 32)
	otherIssuer, err := NewTokenIssuer(otherCfg, &sequenceIDs{}, clock.NewMockClock(testEpoch))
	if err != nil {
		t.Fatalf("other issuer: %v", err)
	}
	forged, err := otherIssuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("forged issue: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "mentis-test",
			ID:        "jti-512",
			IssuedAt:  jwt.NewNumericDate(testEpoch),
			ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
		},
		Type: domain.AccessToken,
	}).SignedString([]byte(testTokenConfig().Secret))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ID:        "jti-iss",
			IssuedAt:  jwt.NewNumericDate(testEpoch),
			ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
		},
		Type: domain.AccessToken,
	}).SignedString([]byte(testTokenConfig().Secret))
	if err != nil {
		t.Fatalf("sign wrong issuer: %v", err)
	}

	untyped, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "mentis-test",
			ID:        "jti-untyped",
			IssuedAt:  jwt.NewNumericDate(testEpoch),
			ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
		},
	}).SignedString([]byte(testTokenConfig().Secret))
	if err != nil {
		t.Fatalf("sign untyped: %v", err)
	}

	tests := []struct {
		name     string
		raw      string
		expected domain.TokenType
	}{
		{"empty", "", domain.AccessToken},
		{"untyped token, untyped expectation", untyped, domain.TokenType("")},
		{"untyped token as access", untyped, domain.AccessToken},
		{"unknown expected type", pair.Access, domain.TokenType("id")},
		{"garbage", "not.a.jwt", domain.AccessToken},
		{"refresh used as access", pair.Refresh, domain.AccessToken},
		{"access used as refresh", pair.Access, domain.RefreshToken},
		{"foreign key", forged.Access, domain.AccessToken},
		{"spliced payload", splice(pair.Access, pair.Refresh), domain.AccessToken},
		{"other algorithm", hs512, domain.AccessToken},
		{"other issuer", wrongIssuer, domain.AccessToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tc.raw, tc.expected)
			de := requireCode(t, err, "UNAUTHORIZED")
			if de.Message() != commonerrors.ErrUnauthorized.Message() {
				t.Errorf("rejections must be indistinguishable, got %q", de.Message())
			}
		})
	}
}

func TestTokenVerifier_RevokedRefreshToken(t *testing.T) {
	revoked := map[string]bool{}
	issuer, verifier, _ := newIssuerVerifier(t, revocationFunc(func(_ context.Context, jti string) (bool, error) {
		return revoked[jti], nil
	}))

	pair, err := issuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), pair.Refresh, domain.RefreshToken); err != nil {
		t.Fatalf("fresh refresh token rejected: %v", err)
	}

	revoked[pair.RefreshID] = true
	_, err = verifier.Verify(context.Background(), pair.Refresh, domain.RefreshToken)
	if !errors.Is(err, commonerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for revoked token, got %v", err)
	}

	if _, err := verifier.Verify(context.Background(), pair.Access, domain.AccessToken); err != nil {
		t.Fatalf("access tokens are not checked against the ledger: %v", err)
	}
}

func TestTokenVerifier_LedgerFailureIsNotUnauthorized(t *testing.T) {
	issuer, verifier, _ := newIssuerVerifier(t, revocationFunc(func(context.Context, string) (bool, error) {
		return false, commonerrors.ErrCircuitOpen
	}))

	pair, err := issuer.Issue(userdomain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = verifier.Verify(context.Background(), pair.Refresh, domain.RefreshToken)
	requireCode(t, err, "SERVICE_UNAVAILABLE")
}

func TestTokenVerifier_VerifyAccessTokenPrincipal(t *testing.T) {
	issuer, verifier, _ := newIssuerVerifier(t, notRevoked)
	pair, err := issuer.Issue(userdomain.User{ID: "user-7"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := verifier.VerifyAccessToken(context.Background(), pair.Access)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "user-7" || p.TokenID == "" || !p.ExpiresAt.Equal(pair.AccessExpiresAt) {
		t.Errorf("unexpected principal %+v", p)
	}
}
