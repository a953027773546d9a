package fluent_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluent"
	"github.com/syssam/fluent/dialect"
)

var discard = slog.New(slog.DiscardHandler)

// mockPool returns a pool whose "main" profile opens the returned sqlmock
// database for both of its databases, shop and audit.
func mockPool(t *testing.T, driver string, opts ...fluent.PoolOption) (*fluent.Pool, sqlmock.Sqlmock, *atomic.Int32) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	profiles, err := fluent.NewProfileTable([]fluent.Profile{
		{Name: "main", Driver: driver, Databases: fluent.Databases{"shop", "audit"}},
	}, fluent.Defaults{CLI: "main:shop", Local: "main:shop", Production: "main:shop"})
	require.NoError(t, err)
	opened := new(atomic.Int32)
	opts = append([]fluent.PoolOption{
		fluent.WithPoolLogger(discard),
		fluent.WithOpener(func(_ context.Context, driverName, _ string) (*sql.DB, error) {
			assert.Equal(t, driver, driverName)
			opened.Add(1)
			return db, nil
		}),
	}, opts...)
	pool := fluent.NewPool(profiles, opts...)
	t.Cleanup(func() {
		_ = pool.Close()
	})
	return pool, mock, opened
}

// memoryPool returns a pool over an in-memory SQLite database private to the
// test, and the identifier addressing it.
func memoryPool(t *testing.T) (*fluent.Pool, fluent.ID) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	id := fluent.NewID("mem", name)
	profiles, err := fluent.NewProfileTable([]fluent.Profile{
		{Name: "mem", Driver: dialect.SQLite, Host: ":memory:", Databases: fluent.Databases{name}},
	}, fluent.Defaults{CLI: id, Local: id, Production: id})
	require.NoError(t, err)
	pool := fluent.NewPool(profiles, fluent.WithPoolLogger(discard))
	t.Cleanup(func() {
		_ = pool.Close()
	})
	return pool, id
}

func TestPoolConnect(t *testing.T) {
	pool, _, opened := mockPool(t, dialect.MySQL)
	ctx := context.Background()

	drv, err := pool.Connect(ctx, "main:shop")
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, drv.Dialect())

	again, err := pool.Connect(ctx, "main:shop")
	require.NoError(t, err)
	assert.Same(t, drv, again)
	assert.Equal(t, int32(1), opened.Load())

	audit, err := pool.Connect(ctx, "main:audit")
	require.NoError(t, err)
	assert.NotSame(t, drv, audit)
	assert.Equal(t, int32(2), opened.Load())
	assert.Equal(t, 2, pool.Len())
}

func TestPoolConnectConcurrent(t *testing.T) {
	pool, _, opened := mockPool(t, dialect.Postgres)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[any]struct{})
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drv, err := pool.Connect(context.Background(), "main:shop")
			assert.NoError(t, err)
			mu.Lock()
			seen[drv] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1)
	assert.Equal(t, int32(1), opened.Load())
}

func TestPoolConnectCallerCancelled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	var (
		opened  atomic.Int32
		entered = make(chan struct{})
		release = make(chan struct{})
	)
	pool, _, _ := mockPool(t, dialect.MySQL, fluent.WithOpener(func(ctx context.Context, _, _ string) (*sql.DB, error) {
		opened.Add(1)
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return db, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := pool.Connect(ctx, "main:shop")
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := pool.Connect(context.Background(), "main:shop")
		second <- err
	}()
	cancel()
	err = <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, fluent.ErrConnectionFailed)

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), opened.Load())
	_, ok := pool.Stats("main:shop")
	assert.True(t, ok)
}

func TestPoolConnectErrors(t *testing.T) {
	pool, _, opened := mockPool(t, dialect.MySQL)
	ctx := context.Background()

	tests := []struct {
		id   fluent.ID
		want error
	}{
		{"", fluent.ErrInvalidIdentifier},
		{"main", fluent.ErrInvalidIdentifier},
		{"other:shop", fluent.ErrUnknownProfile},
		{"main:billing", fluent.ErrDatabaseNotPermitted},
	}
	for _, tt := range tests {
		_, err := pool.Connect(ctx, tt.id)
		assert.ErrorIs(t, err, tt.want, string(tt.id))
	}
	assert.Zero(t, opened.Load())
	assert.Zero(t, pool.Len())
}

func TestPoolOpenFailure(t *testing.T) {
	profiles, err := fluent.NewProfileTable([]fluent.Profile{
		{Name: "main", Databases: fluent.Databases{"shop"}},
	}, fluent.Defaults{})
	require.NoError(t, err)

	cause := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	var calls int
	pool := fluent.NewPool(profiles,
		fluent.WithPoolLogger(discard),
		fluent.WithOpener(func(context.Context, string, string) (*sql.DB, error) {
			calls++
			return nil, cause
		}),
	)

	_, err = pool.Connect(context.Background(), "main:shop")
	require.ErrorIs(t, err, fluent.ErrConnectionFailed)
	require.ErrorIs(t, err, cause)
	var ce *fluent.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, fluent.ID("main:shop"), ce.ID)

	// Failures are not cached.
	_, err = pool.Connect(context.Background(), "main:shop")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, pool.Len())
}

func TestPoolDefaultOpener(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		pool, id := memoryPool(t)
		drv, err := pool.Connect(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, dialect.SQLite, drv.Dialect())
		assert.Equal(t, 1, drv.DB().Stats().MaxOpenConnections)
		require.NoError(t, drv.Ping(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		profiles, err := fluent.NewProfileTable([]fluent.Profile{
			{Name: "disk", Driver: dialect.SQLite, Host: "/nonexistent/fluent", Databases: fluent.Databases{"shop"}},
		}, fluent.Defaults{})
		require.NoError(t, err)
		pool := fluent.NewPool(profiles, fluent.WithPoolLogger(discard))
		_, err = pool.Connect(context.Background(), "disk:shop")
		assert.ErrorIs(t, err, fluent.ErrConnectionFailed)
	})
}

func TestPoolStats(t *testing.T) {
	pool, mock, _ := mockPool(t, dialect.MySQL)
	ctx := context.Background()

	_, ok := pool.Stats("main:shop")
	assert.False(t, ok)

	drv, err := pool.Connect(ctx, "main:shop")
	require.NoError(t, err)
	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 3))
	_, err = drv.Exec(ctx, "DELETE FROM sessions")
	require.NoError(t, err)

	stats, ok := pool.Stats("main:shop")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TotalExecs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolClose(t *testing.T) {
	pool, mock, _ := mockPool(t, dialect.MySQL)
	ctx := context.Background()

	_, err := pool.Connect(ctx, "main:shop")
	require.NoError(t, err)
	mock.ExpectClose()
	require.NoError(t, pool.Close())
	assert.Zero(t, pool.Len())

	_, err = pool.Connect(ctx, "main:shop")
	assert.ErrorIs(t, err, fluent.ErrConnectionFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}
