package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/bulk"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/importer"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/records"
	"github.com/shishobooks/folio/pkg/version"
	"github.com/urfave/cli/v2"
)

// app holds everything a command needs once the library is open.
type app struct {
	db       *database.DB
	records  *records.Service
	engine   *bulk.Engine
	importer *importer.Importer
}

func openLibrary(c *cli.Context) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.BringUpToDate(c.Context, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	adv := advisor.New(cfg)
	svc := records.NewService(db.DB)
	return &app{
		db:       db,
		records:  svc,
		engine:   bulk.NewEngine(svc, adv, cfg.BulkWriteConcurrency),
		importer: importer.New(svc, adv, cfg.ImportUseAdvisor),
	}, nil
}

// withLibrary opens the library around fn and closes it afterwards.
func withLibrary(fn func(c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := openLibrary(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.db.Close(); err != nil {
				logger.FromContext(c.Context).Err(err).Error("database close error")
			}
		}()
		return fn(c, a)
	}
}

func main() {
	log := logger.New()

	cliApp := &cli.App{
		Name:    "folio",
		Usage:   "manage the folio ebook library",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list books",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sort", Value: string(library.SortRecent), Usage: "recent, title, author, series, or group"},
					&cli.BoolFlag{Name: "reverse", Usage: "reverse the sort order"},
					&cli.StringFlag{Name: "search", Usage: "only books whose title, author, series, or group contain this"},
					&cli.StringFlag{Name: "group", Usage: "only books in this group"},
				},
				Action: withLibrary(listBooks),
			},
			{
				Name:      "import",
				Usage:     "import ebook files",
				ArgsUsage: "<file>...",
				Action:    withLibrary(importFiles),
			},
			{
				Name:      "delete",
				Usage:     "delete a book file, or with --all every file of the book",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "delete every variant of the book"},
				},
				Action: withLibrary(deleteBook),
			},
			{
				Name:   "facets",
				Usage:  "list groups and how many books are in each",
				Action: withLibrary(listFacets),
			},
			{
				Name:      "organize",
				Usage:     "ask the metadata advisor to organize the library",
				ArgsUsage: "<instruction>",
				Action:    withLibrary(organize),
			},
			{
				Name:  "settings",
				Usage: "read and write settings",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						ArgsUsage: "<key>",
						Action:    withLibrary(getSetting),
					},
					{
						Name:      "set",
						ArgsUsage: "<key> <value>",
						Action:    withLibrary(setSetting),
					},
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Err(err).Fatal("folio error")
	}
}

func listBooks(c *cli.Context, a *app) error {
	sortKey, err := library.ParseSortKey(c.String("sort"))
	if err != nil {
		return err
	}
	q := library.Query{
		Text:    c.String("search"),
		Sort:    sortKey,
		Reverse: c.Bool("reverse"),
	}
	if c.IsSet("group") {
		g := c.String("group")
		q.Group = &g
	}

	all, err := a.records.ListSummaries(c.Context)
	if err != nil {
		return err
	}
	groups := library.FilterAndSort(library.GroupByIdentity(all), q)

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		r := g.Representative()
		var size int64
		for _, v := range g.Variants {
			size += v.FileSize
		}
		series := models.StringValue(r.SeriesTitle)
		if idx := models.StringValue(r.SeriesIndex); series != "" && idx != "" {
			series += " #" + idx
		}
		rows = append(rows, []string{
			r.ID,
			r.DisplayTitle(),
			r.DisplayAuthor(),
			series,
			models.StringValue(r.Group),
			strconv.Itoa(len(g.Variants)),
			humanize.Bytes(uint64(size)),
			humanize.Time(time.UnixMilli(g.LatestAddedAt())),
		})
	}

	out := c.App.Writer
	fmt.Fprintln(out, renderTable(out,
		[]string{"ID", "Title", "Author", "Series", "Group", "Files", "Size", "Added"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

func importFiles(c *cli.Context, a *app) error {
	if c.NArg() == 0 {
		return errors.New("no files given")
	}

	files := make([]importer.File, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.WithStack(err)
		}
		files = append(files, importer.File{Name: path, Data: data})
	}

	out := c.App.Writer
	imported := 0
	for _, o := range a.importer.ImportAll(c.Context, files) {
		if o.Err != nil {
			fmt.Fprintf(out, "skipped %s: %s\n", o.FileName, o.Err)
			continue
		}
		imported++
		fmt.Fprintf(out, "imported %s as %q by %s (%s)\n", o.FileName, o.Book.Title, o.Book.Author, o.Book.ID)
	}
	fmt.Fprintf(out, "%d of %d files imported\n", imported, len(files))
	return nil
}

func deleteBook(c *cli.Context, a *app) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("no book id given")
	}
	if !c.Bool("all") {
		return a.records.Delete(c.Context, id)
	}

	all, err := a.records.ListSummaries(c.Context)
	if err != nil {
		return err
	}
	group, ok := library.FindGroup(library.GroupByIdentity(all), id)
	if !ok {
		return errors.Errorf("no book with id %s", id)
	}
	if err := a.engine.DeleteGroup(c.Context, group); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %d files\n", len(group.Variants))
	return nil
}

func listFacets(c *cli.Context, a *app) error {
	all, err := a.records.ListSummaries(c.Context)
	if err != nil {
		return err
	}
	facets := library.ExtractGroupFacets(all)

	rows := make([][]string, 0, len(facets))
	for _, f := range facets {
		rows = append(rows, []string{f.Name, models.StringValue(f.Color), strconv.Itoa(f.Count)})
	}
	out := c.App.Writer
	fmt.Fprintln(out, renderTable(out, []string{"Group", "Color", "Books"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	return nil
}

func organize(c *cli.Context, a *app) error {
	instruction := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if instruction == "" {
		return errors.New("no instruction given")
	}

	result, err := a.engine.AutoOrganize(c.Context, instruction)
	if err != nil {
		return err
	}
	if result.AdvisorFailed {
		return errors.New("the metadata advisor gave no suggestions; nothing was changed")
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%d suggestions, %d books updated, %d ignored\n", result.Suggested, result.Updated, result.Ignored)
	for _, f := range result.Failed {
		fmt.Fprintf(out, "failed %s: %s\n", f.RecordID, f.Message)
	}
	return nil
}

func getSetting(c *cli.Context, a *app) error {
	key := c.Args().First()
	if key == "" {
		return errors.New("no key given")
	}
	v, err := a.records.GetSetting(c.Context, key)
	if err != nil {
		return err
	}
	if v == nil {
		return errors.Errorf("%s is not set", key)
	}
	fmt.Fprintln(c.App.Writer, *v)
	return nil
}

func setSetting(c *cli.Context, a *app) error {
	if c.NArg() != 2 {
		return errors.New("usage: folio settings set <key> <value>")
	}
	if strings.HasPrefix(c.Args().Get(0), "lock.") {
		return errors.New("lock settings are changed through the lock routes")
	}
	return a.records.PutSetting(c.Context, c.Args().Get(0), c.Args().Get(1))
}
