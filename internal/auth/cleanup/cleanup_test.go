package cleanup

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentis-project/accounts/internal/auth/domain"
	authrepo "github.com/mentis-project/accounts/internal/auth/repository"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/storage/sqlitetest"
)

type deleterFunc func(ctx context.Context) (int64, error)

func (f deleterFunc) DeleteExpired(ctx context.Context) (int64, error) { return f(ctx) }

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "error")
}

func TestJanitor_PurgeRemovesOnlyExpiredRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)
	repo := authrepo.NewSQLiteRevokedTokenRepository(sqlitetest.Open(t), clk)

	for jti, exp := range map[string]time.Time{
		"expired": now.Add(-time.Minute),
		"live":    now.Add(time.Hour),
	} {
		_, err := repo.Revoke(ctx, domain.RevocationEntry{TokenID: jti, UserID: "u", ExpiresAt: exp, RevokedAt: now.Add(-2 * time.Hour)})
		require.NoError(t, err)
	}

	j := NewJanitor(repo, time.Hour, testLogger())
	assert.Equal(t, int64(1), j.Purge(ctx))
	assert.Equal(t, int64(0), j.Purge(ctx))

	revoked, err := repo.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestJanitor_PurgeFailureIsSwallowed(t *testing.T) {
	var calls atomic.Int32
	j := NewJanitor(deleterFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, errors.New("syntax error")
	}), time.Hour, testLogger())

	assert.Equal(t, int64(0), j.Purge(context.Background()))
	assert.Equal(t, int32(1), calls.Load(), "non-transient errors are not retried")
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	j := NewJanitor(deleterFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, nil
	}), 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
