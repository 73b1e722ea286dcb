package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/config"
	commoncrypto "github.com/mentis-project/accounts/internal/common/crypto"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/common/resilience"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "debug")
}

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		Secret:          strings.Repeat("k", 32),
		Issuer:          "mentis-test",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

// mockUserRepo falls back to an in-memory table when a func field is unset.
type mockUserRepo struct {
	mu    sync.Mutex
	users map[userdomain.ID]userdomain.User

	createFunc          func(ctx context.Context, user userdomain.User) error
	findByEmailFunc     func(ctx context.Context, email string) (userdomain.User, error)
	findByIDFunc        func(ctx context.Context, id userdomain.ID) (userdomain.User, error)
	updateProfileFunc   func(ctx context.Context, user userdomain.User) error
	updatePasswordFunc  func(ctx context.Context, id userdomain.ID, hash string, changedAt time.Time) error
	updateLastLoginFunc func(ctx context.Context, id userdomain.ID, at time.Time) error

	createCalls int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[userdomain.ID]userdomain.User)}
}

func (m *mockUserRepo) emailTaken(email string, except userdomain.ID) bool {
	for id, u := range m.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (m *mockUserRepo) Create(ctx context.Context, user userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	if m.emailTaken(user.Email, "") {
		return commonerrors.ErrEmailAlreadyExists
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (userdomain.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return userdomain.User{}, commonerrors.ErrUserNotFound
}

func (m *mockUserRepo) FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return userdomain.User{}, commonerrors.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user userdomain.User) error {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[user.ID]
	if !ok {
		return commonerrors.ErrUserNotFound
	}
	if m.emailTaken(user.Email, user.ID) {
		return commonerrors.ErrEmailAlreadyExists
	}
	current.Email, current.FirstName, current.LastName, current.PhoneNo = user.Email, user.FirstName, user.LastName, user.PhoneNo
	m.users[user.ID] = current
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id userdomain.ID, hash string, changedAt time.Time) error {
	if m.updatePasswordFunc != nil {
		return m.updatePasswordFunc(ctx, id, hash, changedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return commonerrors.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id userdomain.ID, at time.Time) error {
	if m.updateLastLoginFunc != nil {
		return m.updateLastLoginFunc(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return commonerrors.ErrUserNotFound
	}
	u.LastLogin = &at
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) Ping(context.Context) error { return nil }

func (m *mockUserRepo) get(id userdomain.ID) userdomain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *mockUserRepo) put(u userdomain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

type mockRevokedRepo struct {
	mu      sync.Mutex
	entries map[string]domain.RevocationEntry

	revokeFunc    func(ctx context.Context, entry domain.RevocationEntry) (bool, error)
	isRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func newMockRevokedRepo() *mockRevokedRepo {
	return &mockRevokedRepo{entries: make(map[string]domain.RevocationEntry)}
}

func (m *mockRevokedRepo) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.TokenID]; ok {
		return false, nil
	}
	m.entries[entry.TokenID] = entry
	return true, nil
}

func (m *mockRevokedRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if m.isRevokedFunc != nil {
		return m.isRevokedFunc(ctx, jti)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[jti]
	return ok, nil
}

func (m *mockRevokedRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }

func (m *mockRevokedRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// prefixHasher stands in for bcrypt so tests stay fast.
type prefixHasher struct{}

func (prefixHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (prefixHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return commoncrypto.ErrPasswordMismatch
	}
	return nil
}

type sequenceIDs struct {
	n atomic.Int64
}

func (s *sequenceIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", s.n.Add(1)), nil
}

type testEnv struct {
	svc      *AuthService
	users    *mockUserRepo
	revoked  *mockRevokedRepo
	clock    *clock.MockClock
	issuer   *TokenIssuer
	verifier *TokenVerifier
	ledger   *RevocationLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewMockClock(testEpoch)
	log := testLogger()
	ids := &sequenceIDs{}

	users := newMockUserRepo()
	revoked := newMockRevokedRepo()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  3,
		ResetAfter: time.Minute,
		Name:       "test",
		Clock:      clk,
	})

	cache := NewRevocationCache(context.Background(), clk, log)
	t.Cleanup(cache.Close)

	ledger := NewRevocationLedger(revoked, cache, breaker, clk)

	issuer, err := NewTokenIssuer(testTokenConfig(), ids, clk)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewTokenVerifier(testTokenConfig(), ledger, clk, log)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	policy := config.DefaultPasswordPolicy()
	svc := NewAuthService(users, issuer, verifier, ledger, prefixHasher{}, ids, NewPasswordValidator(policy), breaker, clk, log)

	return &testEnv{
		svc:      svc,
		users:    users,
		revoked:  revoked,
		clock:    clk,
		issuer:   issuer,
		verifier: verifier,
		ledger:   ledger,
	}
}

func requireCode(t *testing.T, err error, code string) commonerrors.DomainError {
	t.Helper()
	de, ok := commonerrors.AsDomainError(err)
	if !ok {
		t.Fatalf("expected domain error %s, got %v", code, err)
	}
	if de.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, de.Code(), err)
	}
	return de
}
