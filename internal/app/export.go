package app

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/storage"
)

var csvHeader = []string{"id", "cryptocurrency", "price_usd", "market_cap_usd", "volume_usd", "timestamp"}

// Export writes stored readings in [from, to) as CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	var from *time.Time
	if opts.From != nil {
		f := opts.From.UTC()
		if !f.Before(to) {
			return errors.New("from must be before to")
		}
		from = &f
	}

	readings, err := store.QueryRange(ctx, storage.Filter{Asset: opts.Asset, Since: from})
	if err != nil {
		return err
	}
	readings = before(readings, to)
	if len(readings) == 0 {
		a.Logger.Info().Msg("no readings found for export window")
		return nil
	}

	downsampled := downsampleReadings(readings, opts.MaxPoints)
	a.Logger.Info().Int("total", len(readings)).Int("exported", len(downsampled)).Str("path", opts.CSVPath).Msg("exporting readings")

	return writeReadingsCSV(opts.CSVPath, downsampled)
}

// before keeps readings strictly earlier than to. Input is ascending by timestamp.
func before(readings []storage.PriceReading, to time.Time) []storage.PriceReading {
	for i, r := range readings {
		if !r.Timestamp.Before(to) {
			return readings[:i]
		}
	}
	return readings
}

// downsampleReadings thins each asset separately so no asset loses its endpoints.
func downsampleReadings(readings []storage.PriceReading, max int) []storage.PriceReading {
	if max <= 0 || len(readings) <= max {
		return readings
	}

	groups := analysis.GroupByAsset(readings, nil)
	perAsset := max / len(groups)
	if perAsset < 2 {
		perAsset = 2
	}

	result := make([]storage.PriceReading, 0, max)
	for _, g := range groups {
		result = append(result, analysis.Downsample(g.Readings, perAsset)...)
	}
	sort.SliceStable(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result
}

func less(a, b storage.PriceReading) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID < b.ID
	}
	return a.Timestamp.Before(b.Timestamp)
}

func writeReadingsCSV(path string, readings []storage.PriceReading) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := writeCSV(file, readings); err != nil {
		return err
	}
	return file.Close()
}

func writeCSV(w io.Writer, readings []storage.PriceReading) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range readings {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Asset,
			strconv.FormatFloat(r.PriceUSD, 'f', -1, 64),
			strconv.FormatFloat(r.MarketCapUSD, 'f', -1, 64),
			strconv.FormatFloat(r.VolumeUSD, 'f', -1, 64),
			r.Timestamp.UTC().Format(storage.TimeLayout),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
