package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/binder"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/bulk"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/importer"
	"github.com/shishobooks/folio/pkg/lock"
	"github.com/shishobooks/folio/pkg/records"
	"github.com/shishobooks/folio/pkg/settings"
	"github.com/uptrace/bun"
)

// New builds the HTTP server. It binds to cfg.ServerHost, which defaults to
// the loopback interface.
func New(ctx context.Context, cfg *config.Config, db *bun.DB, adv advisor.Advisor) (*http.Server, error) {
	e, err := newEcho(ctx, cfg, db, adv)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(ctx context.Context, cfg *config.Config, db *bun.DB, adv advisor.Advisor) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	recordService := records.NewService(db)
	engine := bulk.NewEngine(recordService, adv, cfg.BulkWriteConcurrency)
	imp := importer.New(recordService, adv, cfg.ImportUseAdvisor)

	lockService := lock.NewService(recordService.Settings(), cfg.LockMaxAttempts, cfg.LockLockoutDuration)
	if err := lockService.Init(ctx); err != nil {
		return nil, err
	}
	lock.RegisterRoutes(e, lockService)
	lockMiddleware := lock.NewMiddleware(lockService)

	booksGroup := e.Group("/books")
	booksGroup.Use(lockMiddleware.RequireUnlocked)
	books.RegisterRoutesWithGroup(booksGroup, recordService, engine, imp)

	settingsGroup := e.Group("/settings")
	settingsGroup.Use(lockMiddleware.RequireUnlocked)
	settings.RegisterRoutesWithGroup(settingsGroup, recordService)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
