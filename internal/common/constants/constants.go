package constants

import "time"

const (
	EmailMaxLength     = 254
	NameMaxLength      = 150
	PhoneMaxLength     = 20
	PasswordMaxLength  = 72
	JWTSecretMinLength = 32

	DefaultPasswordMinLength = 8
	DefaultBcryptCost        = 12

	DefaultMaxRequestSize = 1 << 20

	RevocationCacheCleanupInterval = 1 * time.Minute
	RevocationCacheMaxEntries      = 100_000

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultAuthHTTPPort = "8000"

	DefaultCircuitBreakerThreshold = 500
	DefaultCircuitBreakerTimeout   = 15 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultAuthRequestTimeout     = 5 * time.Second
	DefaultAccessTokenTTL         = 5 * time.Minute
	DefaultRefreshTokenTTL        = 24 * time.Hour
	DefaultLedgerCleanupInterval  = 1 * time.Hour
	DefaultTokenIssuer            = "mentis-accounts"
	DefaultSQLitePath             = "mentis.db"
	DefaultServiceApplicationName = "mentis-accounts"

	RootBanner = "Welcome to the mentis project API."

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
