package jwtverify

import (
	"context"
	"net/http"
	"strings"
	"time"

	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	commonhttp "github.com/mentis-project/accounts/internal/common/http"
	"github.com/mentis-project/accounts/internal/common/logger"
)

// Principal is the authenticated caller behind a verified access token.
type Principal struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

type Verifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (Principal, error)
}

type contextKey string

const principalKey contextKey = "jwt_principal"

const bearerScheme = "bearer"

func Middleware(verifier Verifier, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				log.WithFields(r.Context(), logger.Fields{
					"action": "bearer_auth",
					"path":   r.URL.Path,
				}).Warn("missing or malformed authorization header")
				commonhttp.HandleError(w, r, commonerrors.ErrUnauthorized, log)
				return
			}

			principal, err := verifier.VerifyAccessToken(r.Context(), raw)
			if err != nil {
				commonhttp.HandleError(w, r, err, log)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken extracts the credential of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(strings.TrimSpace(raw), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
