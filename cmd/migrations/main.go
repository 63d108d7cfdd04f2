package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// withDB opens the library database around fn. Opening takes the library's
// file lock, so this refuses to run while the api server holds it.
func withDB(fn func(c *cli.Context, db *bun.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		store, err := database.New(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.FromContext(c.Context).Err(err).Error("database close error")
			}
		}()
		return fn(c, store.DB)
	}
}

func main() {
	log := logger.New()

	app := &cli.App{
		Name:  "migrations",
		Usage: "apply and roll back migrations of the folio library database",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create the migration bookkeeping tables",
				Action: withDB(func(c *cli.Context, db *bun.DB) error {
					return errors.WithStack(migrate.NewMigrator(db, migrations.Migrations).Init(c.Context))
				}),
			},
			{
				Name:  "migrate",
				Usage: "apply every pending migration",
				Action: withDB(func(c *cli.Context, db *bun.DB) error {
					group, err := migrations.BringUpToDate(c.Context, db)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						fmt.Println("The library database is already up to date")
						return nil
					}
					fmt.Printf("Migrated to %s\n", group)
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: withDB(func(c *cli.Context, db *bun.DB) error {
					group, err := migrations.RollbackLast(c.Context, db)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						fmt.Println("There are no groups to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", group)
					return nil
				}),
			},
			{
				Name:      "create",
				Usage:     "create a Go migration in pkg/migrations",
				ArgsUsage: "<words describing the migration>",
				Action: withDB(func(c *cli.Context, db *bun.DB) error {
					if c.NArg() == 0 {
						return cli.Exit("a migration name is required", 1)
					}
					name := strings.ToLower(strings.Join(c.Args().Slice(), "_"))
					migrator := migrate.NewMigrator(db, migrations.Migrations)
					mf, err := migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
					if err != nil {
						return errors.WithStack(err)
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "show which migrations have been applied",
				Action: withDB(func(c *cli.Context, db *bun.DB) error {
					statuses, err := migrations.List(c.Context, db)
					if err != nil {
						return err
					}

					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetStyle(table.StyleRounded)
					tw.AppendHeader(table.Row{"Migration", "Group", "Applied"})
					pending := 0
					for _, s := range statuses {
						applied := "pending"
						group := "-"
						if s.Applied() {
							applied = humanize.Time(s.MigratedAt)
							group = fmt.Sprintf("%d", s.GroupID)
						} else {
							pending++
						}
						tw.AppendRow(table.Row{s.Name, group, applied})
					}
					tw.Render()
					fmt.Printf("%d of %d migrations pending\n", pending, len(statuses))
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
