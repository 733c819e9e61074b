package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ahmethakanbesel/fxreport/internal/apperror"
	"github.com/ahmethakanbesel/fxreport/internal/config"
	"github.com/ahmethakanbesel/fxreport/internal/metrics"
	"github.com/ahmethakanbesel/fxreport/internal/platform/postgres"
	"github.com/ahmethakanbesel/fxreport/internal/platform/sqlite"
	"github.com/ahmethakanbesel/fxreport/internal/rate"
	"github.com/ahmethakanbesel/fxreport/internal/report"
	raterepo "github.com/ahmethakanbesel/fxreport/internal/repository/rate"
	"github.com/ahmethakanbesel/fxreport/internal/scraper/nbp"
)

// app holds the wired collaborators shared by the report and serve commands.
type app struct {
	reports *report.Service
	metrics *metrics.Metrics
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{metrics: metrics.New()}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, apperror.Wrap(apperror.StoreUnavailable, "rate store unavailable", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, apperror.Wrap(apperror.Validation, "invalid configuration", err)
	}

	provider := nbp.New(
		nbp.WithClient(&http.Client{Timeout: cfg.NBPTimeout}),
		nbp.WithBaseURL(cfg.NBPBaseURL),
		nbp.WithWorkers(cfg.ChunkWorkers),
	)
	reconciler := rate.NewReconciler(store, provider,
		rate.WithWorkers(cfg.FetchWorkers),
		rate.WithTableThreshold(cfg.TableThreshold),
		rate.WithLocation(loc),
		rate.WithObserver(a.metrics),
	)
	a.reports = report.NewService(reconciler, report.WithLocation(loc))
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.Config) (rate.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Debug("using in-memory rate store")
		return raterepo.NewMemory(), nil
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		return raterepo.NewPostgres(pool), nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		slog.Debug("using sqlite rate store", "path", cfg.DBPath)
		return raterepo.NewRepository(db.DB), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
