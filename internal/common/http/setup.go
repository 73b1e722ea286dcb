package http

import (
	"net/http"

	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/httpmetrics"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/common/tracing"
)

func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	metrics := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)
	csp := ContentSecurityPolicyMiddleware("")

	return SecurityHeadersMiddleware(csp(TraceIDMiddleware(recovery(tracing.Middleware(maxRequestSize(metrics.Wrap(handler)))))))
}
