package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	authcleanup "github.com/mentis-project/accounts/internal/auth/cleanup"
	authrepo "github.com/mentis-project/accounts/internal/auth/repository"
	"github.com/mentis-project/accounts/internal/auth/service"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/config"
	"github.com/mentis-project/accounts/internal/common/constants"
	commoncrypto "github.com/mentis-project/accounts/internal/common/crypto"
	"github.com/mentis-project/accounts/internal/common/db"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/common/resilience"
	"github.com/mentis-project/accounts/internal/storage/migrations"
	userrepo "github.com/mentis-project/accounts/internal/user/repository"
)

// Stores holds the credential store and revocation ledger for the configured
// driver.
type Stores struct {
	Driver  string
	Users   userrepo.Repository
	Revoked authrepo.RevokedTokenRepository
	closers []func()
}

func (s *Stores) Ping(ctx context.Context) error {
	return s.Users.Ping(ctx)
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects to the configured backend, applying migrations first
// when cfg.MigrateOnStart is set.
func OpenStores(ctx context.Context, log *logger.Logger, cfg config.AuthConfig, clk clock.Clock) (*Stores, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		if cfg.MigrateOnStart {
			if _, err := Migrate(ctx, log, cfg); err != nil {
				return nil, err
			}
		}

		pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

		return &Stores{
			Driver:  db.DriverPostgres,
			Users:   userrepo.NewPgRepository(pool),
			Revoked: authrepo.NewPgRevokedTokenRepository(pool),
			closers: []func(){pool.Close, stopMetrics},
		}, nil

	case config.StorageDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if _, err := migrations.Up(ctx, log, sqlDB, db.DriverSQLite); err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
		}

		return &Stores{
			Driver:  db.DriverSQLite,
			Users:   userrepo.NewSQLiteRepository(sqlDB),
			Revoked: authrepo.NewSQLiteRevokedTokenRepository(sqlDB, clk),
			closers: []func(){func() { _ = sqlDB.Close() }},
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown STORAGE_DRIVER %q", config.ErrInvalidConfig, cfg.StorageDriver)
}

func openMigrationDB(ctx context.Context, cfg config.AuthConfig) (*sql.DB, string, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		sqlDB, err := db.OpenMigrationDB(cfg.DatabaseURL)
		return sqlDB, db.DriverPostgres, err
	case config.StorageDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		return sqlDB, db.DriverSQLite, err
	}
	return nil, "", fmt.Errorf("%w: unknown STORAGE_DRIVER %q", config.ErrInvalidConfig, cfg.StorageDriver)
}

// Migrate brings the schema of the configured backend up to date and returns
// the resulting version.
func Migrate(ctx context.Context, log *logger.Logger, cfg config.AuthConfig) (int64, error) {
	sqlDB, driver, err := openMigrationDB(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()

	version, err := migrations.Up(ctx, log, sqlDB, driver)
	if err != nil {
		return 0, err
	}
	log.Infof("schema migrated to version %d (%s)", version, driver)
	return version, nil
}

func SchemaVersion(ctx context.Context, log *logger.Logger, cfg config.AuthConfig) (int64, error) {
	sqlDB, driver, err := openMigrationDB(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()
	return migrations.Version(ctx, log, sqlDB, driver)
}

// AuthApp is the fully wired account service.
type AuthApp struct {
	Config   config.AuthConfig
	Log      *logger.Logger
	Clock    clock.Clock
	Stores   *Stores
	Hasher   commoncrypto.PasswordHasher
	IDs      commoncrypto.IDGenerator
	Verifier *service.TokenVerifier
	Auth     *service.AuthService
	Janitor  *authcleanup.Janitor

	cache *service.RevocationCache
}

func NewAuthApp(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*AuthApp, error) {
	clk := clock.NewRealClock()

	stores, err := OpenStores(ctx, log, cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}

	app, err := wire(ctx, cfg, log, clk, stores)
	if err != nil {
		stores.Close()
		return nil, err
	}
	return app, nil
}

func wire(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, clk clock.Clock, stores *Stores) (*AuthApp, error) {
	ids := commoncrypto.NewUUIDGenerator()
	hasher := commoncrypto.NewBcryptHasher(cfg.BcryptCost)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  cfg.CircuitBreakerThreshold,
		Timeout:    cfg.CircuitBreakerTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "accounts_store",
		Logger:     log,
		Clock:      clk,
	})

	cache := service.NewRevocationCache(ctx, clk, log)
	ledger := service.NewRevocationLedger(stores.Revoked, cache, breaker, clk)

	issuer, err := service.NewTokenIssuer(cfg.Token, ids, clk)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	verifier, err := service.NewTokenVerifier(cfg.Token, ledger, clk, log)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	auth := service.NewAuthService(
		stores.Users,
		issuer,
		verifier,
		ledger,
		hasher,
		ids,
		service.NewPasswordValidator(cfg.PasswordPolicy),
		breaker,
		clk,
		log,
	)

	return &AuthApp{
		Config:   cfg,
		Log:      log,
		Clock:    clk,
		Stores:   stores,
		Hasher:   hasher,
		IDs:      ids,
		Verifier: verifier,
		Auth:     auth,
		Janitor:  authcleanup.NewJanitor(stores.Revoked, cfg.LedgerCleanupInterval, log),
		cache:    cache,
	}, nil
}

func (a *AuthApp) Close() {
	a.cache.Close()
	a.Stores.Close()
}
