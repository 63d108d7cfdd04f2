package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/server"
	"github.com/shishobooks/folio/pkg/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting folio", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db.DB)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	adv := advisor.New(cfg)
	if _, ok := adv.(advisor.Disabled); ok {
		log.Info("metadata advisor disabled, no api key configured")
	}

	srv, err := server.New(ctx, cfg, db.DB, adv)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	if !isLoopback(cfg.ServerHost) {
		log.Warn("server is reachable from other machines, the library has no accounts", logger.Data{"server_host": cfg.ServerHost})
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
