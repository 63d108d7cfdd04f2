package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE books (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				description TEXT,
				genre TEXT,
				release_date TEXT,
				language TEXT,
				status TEXT,
				series_title TEXT,
				series_index TEXT,
				series_color TEXT,
				group_name TEXT,
				group_color TEXT,
				file_name TEXT NOT NULL,
				file_type TEXT NOT NULL,
				file_size INTEGER NOT NULL,
				added_at INTEGER NOT NULL,
				cover_color TEXT NOT NULL,
				file_data BLOB NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_added_at ON books (added_at)`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Propagation looks up every record sharing a group or series name.
		_, err = db.Exec(`CREATE INDEX ix_books_group_name ON books (group_name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_series_title ON books (series_title)`)
		if err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS books")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
