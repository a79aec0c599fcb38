package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/collector"
	"crypto-tracker/internal/config"
	"crypto-tracker/internal/dashboard"
	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/scheduler"
	"crypto-tracker/internal/storage"
	"crypto-tracker/internal/visualizer"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives operator-facing console output.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newCoinGecko() *fetcher.CoinGecko {
	return fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
		BaseURL:   a.Config.Collector.BaseURL,
		APIKey:    a.Config.Collector.APIKey,
		UserAgent: a.Config.Collector.UserAgent,
		Timeout:   a.Config.Collector.RequestTimeout,
	}, a.Logger)
}

// newLiveSource returns the dashboard's live price reader and its cleanup.
func (a *App) newLiveSource() (fetcher.PriceFetcher, func()) {
	switch a.Config.Dashboard.LiveSource {
	case "coingecko":
		return a.newCoinGecko(), func() {}
	case "chainlink":
		oracle := fetcher.NewOracle(fetcher.OracleOptions{
			RPCURL:  a.Config.Oracle.RPCURL,
			Feeds:   a.Config.Oracle.Feeds,
			Timeout: a.Config.Oracle.RequestTimeout,
		}, a.Logger)
		return oracle, oracle.Close
	default:
		return nil, func() {}
	}
}

// openStore opens a handle on the configured store and makes sure the table exists.
func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Collect runs the polling loop until interrupted.
func (a *App) Collect(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Fprintln(a.Out, "Database setup complete!")

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Collector.Interval,
		StartupDelay: a.Config.Collector.StartupDelay,
	}, a.Logger)

	c := collector.New(a.Config.Collector.Assets, sched, a.newCoinGecko(), store, a.Out, a.Logger)

	fmt.Fprintln(a.Out, "Starting cryptocurrency price tracker...")
	fmt.Fprintln(a.Out, "Press Ctrl+C to stop")
	a.Logger.Info().
		Strs("assets", a.Config.Collector.Assets).
		Dur("interval", a.Config.Collector.Interval).
		Str("driver", a.Config.Database.Driver).
		Msg("starting collector")

	err = c.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("collector terminated with error")
		return err
	}

	fmt.Fprintln(a.Out, "\nStopping price tracker...")
	a.Logger.Info().Msg("collector stopped")
	return nil
}

// VisualizeOptions override the configured chart window and output directory.
type VisualizeOptions struct {
	Window    time.Duration
	OutputDir string
}

// Visualize writes the static chart set and prints summary statistics.
func (a *App) Visualize(ctx context.Context, opts VisualizeOptions) error {
	cfg := a.Config.Visualizer
	if opts.Window > 0 {
		cfg.Window = opts.Window
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintln(a.Out, "Generating cryptocurrency visualizations...")
	v := visualizer.New(visualizer.Options{
		OutputDir: cfg.OutputDir,
		Window:    cfg.Window,
		MaxPoints: cfg.MaxPoints,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, a.Config.Collector.Assets, store, a.Logger)

	report, err := v.Generate(ctx)
	if err != nil {
		return err
	}
	return visualizer.WriteSummary(a.Out, report)
}

// Dashboard serves the web dashboard until interrupted.
func (a *App) Dashboard(ctx context.Context, addr string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.Config.Dashboard
	if addr != "" {
		cfg.Addr = addr
	}

	// fail fast on an unreachable store; requests open their own handles
	check, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	check.Close()

	live, closeLive := a.newLiveSource()
	defer closeLive()

	srv := dashboard.New(dashboard.Options{
		Addr:            cfg.Addr,
		RefreshInterval: cfg.RefreshInterval,
		DefaultWindow:   cfg.DefaultWindow,
		MaxPoints:       cfg.MaxPoints,
		LiveSource:      cfg.LiveSource,
	}, a.Config.Collector.Assets, a.openStore, live, a.Logger)

	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ExportOptions hold parameters for exporting stored readings.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Asset     string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Hours int
	Asset string
}
