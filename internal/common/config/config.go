package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mentis-project/accounts/internal/common/constants"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidJWTSecret   = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

type PasswordPolicy struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireLetter  bool `env:"REQUIRE_LETTER" envDefault:"true"`
	RequireDigit   bool `env:"REQUIRE_DIGIT" envDefault:"true"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"false"`
	RequireSymbol  bool `env:"REQUIRE_SYMBOL" envDefault:"false"`
	RejectNumeric  bool `env:"REJECT_NUMERIC" envDefault:"true"`
	RejectEmailTag bool `env:"REJECT_EMAIL_LOCAL_PART" envDefault:"true"`
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      constants.DefaultPasswordMinLength,
		RequireLetter:  true,
		RequireDigit:   true,
		RejectNumeric:  true,
		RejectEmailTag: true,
	}
}

type TokenConfig struct {
	Secret          string        `env:"JWT_SECRET"`
	Issuer          string        `env:"JWT_ISSUER" envDefault:"mentis-accounts"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"5m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
}

type AuthConfig struct {
	HTTPPort       string        `env:"AUTH_HTTP_PORT" envDefault:"8000"`
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"5s"`

	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"mentis.db"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	Token          TokenConfig
	BcryptCost     int            `env:"BCRYPT_COST" envDefault:"12"`
	PasswordPolicy PasswordPolicy `envPrefix:"PASSWORD_"`

	LedgerCleanupInterval time.Duration `env:"LEDGER_CLEANUP_INTERVAL" envDefault:"1h"`

	CircuitBreakerThreshold int32         `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"500"`
	CircuitBreakerTimeout   time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"15s"`
	CircuitBreakerReset     time.Duration `env:"CIRCUIT_BREAKER_RESET" envDefault:"10s"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogDir   string `env:"LOG_DIR"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadAuthConfig() (AuthConfig, error) {
	return load(env.Options{})
}

// LoadAuthConfigFrom parses the given key/value set instead of the process
// environment.
func LoadAuthConfigFrom(environ map[string]string) (AuthConfig, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (AuthConfig, error) {
	var cfg AuthConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return AuthConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))

	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

func (c AuthConfig) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingRequiredEnv)
	}
	if err := validateJWTSecret(c.Token.Secret); err != nil {
		return err
	}

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL", ErrMissingRequiredEnv)
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH", ErrMissingRequiredEnv)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrInvalidConfig, c.StorageDriver)
	}

	if c.Token.AccessTokenTTL <= 0 || c.Token.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", ErrInvalidConfig)
	}
	if c.Token.AccessTokenTTL >= c.Token.RefreshTokenTTL {
		return fmt.Errorf("%w: ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL", ErrInvalidConfig)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("%w: BCRYPT_COST must be within [4, 31]", ErrInvalidConfig)
	}
	if c.PasswordPolicy.MinLength < 1 || c.PasswordPolicy.MinLength > constants.PasswordMaxLength {
		return fmt.Errorf("%w: PASSWORD_MIN_LENGTH must be within [1, %d]", ErrInvalidConfig, constants.PasswordMaxLength)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: AUTH_REQUEST_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(secret))
	}
	return nil
}
