package collector

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/scheduler"
	"crypto-tracker/internal/storage"
)

// ReadingStore is what the collector needs from the store: append access
// plus the latest-per-asset read used for the console echo.
type ReadingStore interface {
	storage.ReadingWriter
	LatestPerAsset(ctx context.Context) ([]storage.PriceReading, error)
}

// TickResult describes one poll-and-persist pass.
type TickResult struct {
	TickID   string
	At       time.Time
	Readings []storage.PriceReading
	Failures map[string]error
}

// Collector polls the upstream quote source and appends readings to the store.
type Collector struct {
	scheduler *scheduler.Scheduler
	quotes    fetcher.QuoteFetcher
	store     ReadingStore
	console   io.Writer
	assets    []string
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs the collector. console receives the per-tick price echo; nil discards it.
func New(assets []string, sched *scheduler.Scheduler, quotes fetcher.QuoteFetcher, store ReadingStore, console io.Writer, logger zerolog.Logger) *Collector {
	if console == nil {
		console = io.Discard
	}
	return &Collector{
		scheduler: sched,
		quotes:    quotes,
		store:     store,
		console:   console,
		assets:    append([]string(nil), assets...),
		logger:    logger.With().Str("component", "collector").Logger(),
		now:       time.Now,
	}
}

// Run polls immediately, then once per interval, until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if c.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return c.scheduler.Run(ctx, func(ctx context.Context, at time.Time) error {
		_, err := c.PollAt(ctx, at)
		return err
	})
}

// PollOnce runs a single tick stamped with the current time.
func (c *Collector) PollOnce(ctx context.Context) (TickResult, error) {
	return c.PollAt(ctx, c.now())
}

// PollAt fetches every configured asset in order and appends one reading per
// successful fetch, all stamped with at (truncated to whole seconds). Upstream
// failures skip the asset; a store failure ends the tick with an error.
func (c *Collector) PollAt(ctx context.Context, at time.Time) (TickResult, error) {
	result := TickResult{
		TickID:   uuid.NewString(),
		At:       at.UTC().Truncate(time.Second),
		Readings: make([]storage.PriceReading, 0, len(c.assets)),
		Failures: make(map[string]error),
	}
	logger := c.logger.With().Str("tick_id", result.TickID).Logger()

	for _, asset := range c.assets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		quote, err := c.quotes.FetchQuote(ctx, asset)
		if err != nil {
			result.Failures[asset] = err
			logger.Warn().Err(err).Str("asset", asset).Msg("skipping asset for this tick")
			continue
		}

		reading := storage.PriceReading{
			Asset:        asset,
			PriceUSD:     quote.PriceUSD,
			MarketCapUSD: quote.MarketCapUSD,
			VolumeUSD:    quote.VolumeUSD,
			Timestamp:    result.At,
		}
		id, err := c.store.Append(ctx, reading)
		if err != nil {
			return result, fmt.Errorf("persist %s reading: %w", asset, err)
		}
		reading.ID = id
		result.Readings = append(result.Readings, reading)
	}

	logger.Info().Time("at", result.At).
		Int("stored", len(result.Readings)).
		Int("failed", len(result.Failures)).
		Msg("tick recorded")

	c.echo(ctx, result)
	return result, nil
}

func (c *Collector) echo(ctx context.Context, result TickResult) {
	w := c.console
	fmt.Fprintf(w, "\nTime: %s UTC\n", result.At.Format(storage.TimeLayout))

	stored := make(map[string]storage.PriceReading, len(result.Readings))
	for _, r := range result.Readings {
		stored[r.Asset] = r
	}
	for _, asset := range c.assets {
		if r, ok := stored[asset]; ok {
			fmt.Fprintf(w, "\n%s:\n", format.Title(asset))
			fmt.Fprintf(w, "Price: %s\n", format.USD(r.PriceUSD))
			fmt.Fprintf(w, "Market Cap: %s\n", format.USD(r.MarketCapUSD))
			fmt.Fprintf(w, "24h Volume: %s\n", format.USD(r.VolumeUSD))
			continue
		}
		if err, failed := result.Failures[asset]; failed {
			fmt.Fprintf(w, "\n%s: unavailable this tick (%v)\n", format.Title(asset), err)
		}
	}

	latest, err := c.store.LatestPerAsset(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read latest stored data")
		return
	}
	fmt.Fprintln(w, "\nLatest stored data from database:")
	for _, r := range latest {
		fmt.Fprintf(w, "%s: %s at %s\n", format.Title(r.Asset), format.USD(r.PriceUSD), r.Timestamp.Format(storage.TimeLayout))
	}
}
