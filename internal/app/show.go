package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

// Show prints the price history of every asset over the last opts.Hours hours.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Hours <= 0 {
		return fmt.Errorf("hours must be greater than zero")
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	assets := a.Config.Collector.Assets
	if opts.Asset != "" {
		assets = []string{opts.Asset}
	}

	since := time.Now().UTC().Add(-time.Duration(opts.Hours) * time.Hour)
	return showHistory(ctx, a.Out, store, assets, opts.Hours, since)
}

func showHistory(ctx context.Context, out io.Writer, store storage.ReadingReader, assets []string, hours int, since time.Time) error {
	for _, asset := range assets {
		readings, err := store.QueryRange(ctx, storage.Filter{Asset: asset, Since: &since})
		if err != nil {
			return fmt.Errorf("query %s history: %w", asset, err)
		}

		fmt.Fprintf(out, "\n%s price history for the last %d hours:\n", format.Title(asset), hours)
		if len(readings) == 0 {
			fmt.Fprintln(out, "No data available for this time period")
			continue
		}

		for _, r := range readings {
			fmt.Fprintf(out, "%s: %s\n", r.Timestamp.UTC().Format(storage.TimeLayout), format.USD(r.PriceUSD))
		}
		first, last := readings[0].PriceUSD, readings[len(readings)-1].PriceUSD
		fmt.Fprintf(out, "\nPrice change: %s\n", format.Percent(analysis.ChangePct(first, last)))
	}
	return nil
}
