package service

import (
	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/observability/metrics"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultInvalid = "invalid"
	resultError   = "error"
)

func recordTokensIssued() {
	metrics.TokensIssued.WithLabelValues(string(domain.AccessToken)).Inc()
	metrics.TokensIssued.WithLabelValues(string(domain.RefreshToken)).Inc()
}

func recordVerification(typ domain.TokenType, result string) {
	metrics.TokenVerificationsTotal.WithLabelValues(string(typ), result).Inc()
}

func recordRegistration(result string) {
	metrics.RegistrationsTotal.WithLabelValues(result).Inc()
}

func recordLogin(result string) {
	metrics.LoginsTotal.WithLabelValues(result).Inc()
}

func recordPasswordChange(result string) {
	metrics.PasswordChangesTotal.WithLabelValues(result).Inc()
}
