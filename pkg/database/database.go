package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type key int

const ctxKey key = 0

// WithLogging turns on query logging for queries run with the returned
// context when the database was opened in debug mode.
func WithLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey, true)
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled, ok := ctx.Value(ctxKey).(bool)
	if !ok || !enabled {
		return
	}
	qh.log.Debug(event.Query, logger.Data{"duration_ms": time.Since(event.StartTime).Milliseconds()})
}

// DB is the library datastore. It owns an exclusive lock on the database file
// for as long as it's open, so only one process ever writes the library.
type DB struct {
	*bun.DB
	lock *flock.Flock
}

// Close closes the connection pool and releases the file lock.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.lock != nil {
		if uerr := db.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return errors.WithStack(err)
}

// New opens the library datastore. Every failure is reported as
// errcodes.StorageUnavailable; there is no in-memory fallback, since a
// library that silently forgets its books on restart is worse than one that
// refuses to start.
func New(cfg *config.Config) (*DB, error) {
	var lock *flock.Flock
	if !cfg.InMemory() {
		lock = flock.New(cfg.DatabaseFilePath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, errors.Wrap(errcodes.StorageUnavailable("can't create lock file"), err.Error())
		}
		if !locked {
			return nil, errors.WithStack(errcodes.StorageUnavailable("the library is open in another process"))
		}
	}

	db, err := open(cfg)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, errors.Wrap(errcodes.StorageUnavailable(""), err.Error())
	}

	return &DB{DB: db, lock: lock}, nil
}

func open(cfg *config.Config) (*bun.DB, error) {
	drv := sqliteshim.Driver()
	drvCtx, ok := drv.(interface {
		OpenConnector(name string) (driver.Connector, error)
	})
	if !ok {
		return nil, errors.New("sqlite driver does not support OpenConnector")
	}
	connector, err := drvCtx.OpenConnector(cfg.DatabaseFilePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sqldb := sql.OpenDB(newRetryConnector(connector, cfg.DatabaseMaxRetries))
	// One connection serializes every statement, and is also required for
	// :memory:, where each connection would otherwise be its own database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	attempts := cfg.DatabaseConnectRetryCount
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		_, err = db.Exec("SELECT 1")
		if err == nil {
			break
		}
		time.Sleep(cfg.DatabaseConnectRetryDelay)
	}
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=?", cfg.DatabaseBusyTimeout.Milliseconds()); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to set busy_timeout")
	}

	return db, nil
}
