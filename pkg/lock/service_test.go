package lock

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	svc := NewService(settings.NewService(setupTestDB(t)), 3, 5*time.Minute)
	svc.now = clock.now
	svc.lastActivity = clock.t
	return svc, clock
}

func TestLock_RequiresPasscode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	err := svc.Lock(ctx)
	assert.True(t, errors.Is(err, errcodes.ValidationError("")))

	locked, err := svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockAndUnlock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetPasscode(ctx, "", "1234"))
	require.NoError(t, svc.Lock(ctx))

	locked, err := svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	err = svc.Unlock(ctx, "0000")
	assert.True(t, errors.Is(err, errcodes.InvalidPasscode()))
	locked, err = svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, svc.Unlock(ctx, "1234"))
	locked, err = svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestSetPasscode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	err := svc.SetPasscode(ctx, "", "12")
	assert.True(t, errors.Is(err, errcodes.ValidationError("")))

	require.NoError(t, svc.SetPasscode(ctx, "", "1234"))

	// Changing it needs the current one.
	err = svc.SetPasscode(ctx, "wrong", "5678")
	assert.True(t, errors.Is(err, errcodes.InvalidPasscode()))
	require.NoError(t, svc.SetPasscode(ctx, "1234", "5678"))

	// The hash is stored, never the passcode.
	hash, err := svc.settings.Get(ctx, settings.KeyPasscodeHash)
	require.NoError(t, err)
	require.NotNil(t, hash)
	assert.NotEqual(t, "5678", *hash)

	require.NoError(t, svc.SetPasscode(ctx, "5678", ""))
	has, err := svc.HasPasscode(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUnlock_LockoutAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, clock := newTestService(t)

	require.NoError(t, svc.SetPasscode(ctx, "", "1234"))
	require.NoError(t, svc.Lock(ctx))

	assert.True(t, errors.Is(svc.Unlock(ctx, "a"), errcodes.InvalidPasscode()))
	assert.True(t, errors.Is(svc.Unlock(ctx, "b"), errcodes.InvalidPasscode()))
	assert.True(t, errors.Is(svc.Unlock(ctx, "c"), errcodes.TooManyAttempts()))

	// Even the right passcode is refused during the lockout.
	assert.True(t, errors.Is(svc.Unlock(ctx, "1234"), errcodes.TooManyAttempts()))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Locked)
	require.NotNil(t, status.LockedOutUntil)
	assert.Equal(t, clock.t.Add(5*time.Minute).UnixMilli(), status.LockedOutUntil.UnixMilli())

	clock.t = clock.t.Add(5*time.Minute + time.Second)
	require.NoError(t, svc.Unlock(ctx, "1234"))

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Zero(t, status.FailedAttempts)
	assert.Nil(t, status.LockedOutUntil)
}

func TestIsLocked_AutoLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, clock := newTestService(t)

	require.NoError(t, svc.SetAutoLockMinutes(ctx, 10))

	// Without a passcode there's nothing to unlock with, so no auto-lock.
	clock.t = clock.t.Add(time.Hour)
	locked, err := svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, svc.SetPasscode(ctx, "", "1234"))
	svc.Touch()

	clock.t = clock.t.Add(9 * time.Minute)
	locked, err = svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	svc.Touch()
	clock.t = clock.t.Add(10 * time.Minute)
	locked, err = svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSetAutoLockMinutes_RejectsNegative(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	err := svc.SetAutoLockMinutes(context.Background(), -1)
	assert.True(t, errors.Is(err, errcodes.ValidationError("")))
}

func TestInit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.Init(ctx))
	locked, err := svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, svc.SetPasscode(ctx, "", "1234"))
	require.NoError(t, svc.Init(ctx))
	locked, err = svc.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)
}
