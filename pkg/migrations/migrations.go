package migrations

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// BringUpToDate creates the migration bookkeeping tables if needed and applies
// every pending migration as one group.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return group, nil
}

// RollbackLast undoes the most recently applied migration group.
func RollbackLast(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return group, nil
}

// Status describes one registered migration. MigratedAt is zero when it
// hasn't been applied.
type Status struct {
	Name       string
	Comment    string
	GroupID    int64
	MigratedAt time.Time
}

func (s Status) Applied() bool {
	return s.GroupID != 0
}

// List reports every registered migration, oldest first, along with whether
// and when it was applied.
func List(ctx context.Context, db *bun.DB) ([]Status, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	statuses := make([]Status, 0, len(ms))
	for _, m := range ms {
		statuses = append(statuses, Status{
			Name:       m.Name,
			Comment:    m.Comment,
			GroupID:    m.GroupID,
			MigratedAt: m.MigratedAt,
		})
	}
	return statuses, nil
}
