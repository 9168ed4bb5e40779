package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/signquote/internal/config"
	"github.com/Simplici0/signquote/internal/db"
	"github.com/Simplici0/signquote/internal/migrations"
	"github.com/Simplici0/signquote/internal/quotes"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
	"github.com/Simplici0/signquote/internal/seed"
)

const shutdownTimeout = 10 * time.Second

type catalogSource interface {
	Current() ratecard.Catalog
}

type server struct {
	log     *zap.Logger
	db      *sql.DB
	cards   *sqlstore.Store
	quotes  *quotes.Store
	catalog catalogSource
	metrics *metrics
}

func newServer(log *zap.Logger, database *sql.DB, catalog catalogSource, reg *prometheus.Registry) *server {
	cards := sqlstore.New(database, log.Named("ratecards"))
	return &server{
		log:     log,
		db:      database,
		cards:   cards,
		quotes:  quotes.New(database, cards, log.Named("quotes")),
		catalog: catalog,
		metrics: newMetrics(reg),
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	for _, w := range cfg.Warnings() {
		log.Warn("config: " + w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	catalog, err := config.NewCatalogSource(cfg.CatalogPath, log.Named("catalog"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := newServer(log, database, catalog, reg)

	if cfg.SeedDefaultRateCard {
		stats, err := seed.Run(ctx, srv.cards, catalog.Current())
		if err != nil {
			return fmt.Errorf("failed to seed default rate card: %w", err)
		}
		log.Info("seed complete", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return catalog.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
