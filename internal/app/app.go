package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pokewatch/internal/config"
	"pokewatch/internal/repositories"
	"pokewatch/internal/scheduler"
	"pokewatch/internal/services/scraping"
	"pokewatch/internal/snapshot"
)

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Pool          *pgxpool.Pool
	Redis         *goredis.Client
	Repo          repositories.SeenRepository
	Notifier      scraping.Notifier
	Providers     map[string]scraping.Provider
	Snapshots     *snapshot.Store
	ScrapeService *scraping.Service
	Scheduler     *scheduler.Scheduler
	Server        *http.Server

	// closers release resources the builder created itself.
	closers []func() error
}

func (a *App) Start() error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}

	go func() {
		a.Logger.Info("HTTP server listening", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Fatal("http server error", zap.Error(err))
		}
	}()

	return nil
}

// RunOnce performs a single pass without starting the HTTP server or the
// scheduler.
func (a *App) RunOnce(ctx context.Context) scraping.Summary {
	return a.ScrapeService.Run(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()
	err := a.Server.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

// Close waits for pending snapshot writes and releases owned resources.
func (a *App) Close() error {
	if a.Snapshots != nil {
		a.Snapshots.Wait()
	}
	err := a.closeResources()
	_ = a.Logger.Sync()
	return err
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
