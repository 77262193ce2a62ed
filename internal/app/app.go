package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stockcast/internal/config"
	"stockcast/internal/forecast"
	"stockcast/internal/marketdata"
	"stockcast/internal/predict"
	"stockcast/internal/reconcile"
	"stockcast/internal/scheduler"
	"stockcast/internal/server"
	"stockcast/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() marketdata.Source {
	return marketdata.NewClient(marketdata.ClientOptions{
		BaseURL:        a.Config.Market.BaseURL,
		Timeout:        a.Config.Market.RequestTimeout,
		UserAgent:      a.Config.Market.UserAgent,
		RequestsPerSec: a.Config.Market.RequestsPerSec,
	}, a.Logger)
}

func (a *App) newEngine() *forecast.Engine {
	return forecast.NewEngine(forecast.Options{
		MinObservations: a.Config.Forecast.MinObservations,
	}, a.Logger)
}

func (a *App) newPipeline(store storage.ForecastStore) *predict.Pipeline {
	return predict.New(predict.Options{
		Lookback:   a.Config.Market.Lookback,
		MaxHorizon: a.Config.Forecast.MaxHorizon,
	}, a.newSource(), a.newEngine(), store, a.Logger)
}

func (a *App) newJob(store *storage.Store) *reconcile.Job {
	return reconcile.New(reconcile.Options{
		Location:        a.Config.Location(),
		AdvisoryLockKey: a.Config.Reconciler.AdvisoryLockKey,
	}, a.newSource(), store, store, store, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Serve runs the HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to serve the api")
	}
	defer closeStore()

	handler := server.NewHandler(server.HandlerOptions{
		DefaultHorizon:  a.Config.Forecast.DefaultHorizon,
		HistoryLookback: "1y",
	}, a.newPipeline(store), a.newSource(), store, a.Logger)

	srv := server.New(server.Options{
		ListenAddr:      a.Config.Server.ListenAddr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		AllowedOrigins:  a.Config.Server.AllowedOrigins,
	}, handler, a.Logger)

	a.Logger.Info().Msg("starting api server")
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("api server terminated with error")
		return err
	}

	a.Logger.Info().Msg("api server stopped")
	return nil
}

// ReconcileOptions configure a reconciliation invocation.
type ReconcileOptions struct {
	AsOf *time.Time
	Loop bool
}

// Reconcile executes one pass, a historical pass, or a scheduled loop.
func (a *App) Reconcile(ctx context.Context, opts ReconcileOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to reconcile")
	}
	defer closeStore()

	job := a.newJob(store)

	if opts.Loop {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Reconciler.Interval,
			AlignToStart: a.Config.Reconciler.AlignToInterval,
			StartupDelay: a.Config.Reconciler.StartupDelay,
		}, a.Logger)

		err := sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
			_, runErr := job.Run(ctx)
			return runErr
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	var report reconcile.Report
	if opts.AsOf != nil {
		report, err = job.RunAsOf(ctx, *opts.AsOf)
	} else {
		report, err = job.Run(ctx)
	}
	if err != nil {
		return err
	}

	if report.Failed > 0 {
		return errors.New("some items failed to reconcile; see logs")
	}
	return nil
}
