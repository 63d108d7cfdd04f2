package settings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shishobooks/folio/pkg/migrations"
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

func TestGet_Missing(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))

	v, err := svc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPut_InsertsThenReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	require.NoError(t, svc.Put(ctx, KeyAutoLockMinutes, "5"))
	v, err := svc.Get(ctx, KeyAutoLockMinutes)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "5", *v)

	require.NoError(t, svc.Put(ctx, KeyAutoLockMinutes, "15"))
	v, err = svc.Get(ctx, KeyAutoLockMinutes)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "15", *v)
}

func TestDelete_IsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	require.NoError(t, svc.Put(ctx, "theme", "dark"))
	require.NoError(t, svc.Delete(ctx, "theme"))
	require.NoError(t, svc.Delete(ctx, "theme"))

	v, err := svc.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGetInt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	n, err := svc.GetInt(ctx, KeyFailedAttempts, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, svc.PutInt(ctx, KeyFailedAttempts, 3))
	n, err = svc.GetInt(ctx, KeyFailedAttempts, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, svc.Put(ctx, KeyFailedAttempts, "garbage"))
	n, err = svc.GetInt(ctx, KeyFailedAttempts, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
