package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/storage"
	"crypto-tracker/internal/visualizer"
)

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			Path:        filepath.Join(dir, "crypto_data.db"),
			BusyTimeout: time.Second,
		},
		Collector: config.CollectorConfig{
			Assets:   []string{"bitcoin", "ethereum"},
			Interval: time.Minute,
		},
		Visualizer: config.VisualizerConfig{
			OutputDir: filepath.Join(dir, "charts"),
			Window:    24 * time.Hour,
			Width:     480,
			Height:    320,
		},
		Export: config.ExportConfig{MaxDataPoints: 1000},
	}
	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func seedReadings(t *testing.T, a *App, readings ...storage.PriceReading) {
	t.Helper()
	ctx := context.Background()
	store, err := a.openStore(ctx)
	require.NoError(t, err)
	defer store.Close()
	for _, r := range readings {
		_, err := store.Append(ctx, r)
		require.NoError(t, err)
	}
}

func TestShowPrintsHistoryAndChange(t *testing.T) {
	a, out := testApp(t)
	recent := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	seedReadings(t, a,
		storage.PriceReading{Asset: "bitcoin", PriceUSD: 50000, Timestamp: recent},
		storage.PriceReading{Asset: "bitcoin", PriceUSD: 51175, Timestamp: recent.Add(time.Hour)},
		storage.PriceReading{Asset: "ethereum", PriceUSD: 3000, Timestamp: recent.Add(-48 * time.Hour)},
	)

	require.NoError(t, a.Show(context.Background(), ShowOptions{Hours: 24}))

	text := out.String()
	require.Contains(t, text, "Bitcoin price history for the last 24 hours:")
	require.Contains(t, text, recent.Format(storage.TimeLayout)+": $50,000.00")
	require.Contains(t, text, "Price change: 2.35%")
	require.Contains(t, text, "Ethereum price history for the last 24 hours:\nNo data available for this time period")
}

func TestShowSingleAsset(t *testing.T) {
	a, out := testApp(t)
	require.NoError(t, a.Show(context.Background(), ShowOptions{Hours: 1, Asset: "solana"}))
	require.Contains(t, out.String(), "Solana price history for the last 1 hours:")
	require.NotContains(t, out.String(), "Bitcoin")

	require.Error(t, a.Show(context.Background(), ShowOptions{Hours: 0}))
}

func TestExportWritesCSV(t *testing.T) {
	a, _ := testApp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedReadings(t, a,
		storage.PriceReading{Asset: "bitcoin", PriceUSD: 50000, MarketCapUSD: 9.8e11, VolumeUSD: 3.2e10, Timestamp: base},
		storage.PriceReading{Asset: "ethereum", PriceUSD: 3000.5, MarketCapUSD: 3.6e11, VolumeUSD: 1.5e10, Timestamp: base},
		storage.PriceReading{Asset: "bitcoin", PriceUSD: 50100, MarketCapUSD: 9.8e11, VolumeUSD: 3.2e10, Timestamp: base.Add(time.Minute)},
		storage.PriceReading{Asset: "bitcoin", PriceUSD: 50200, MarketCapUSD: 9.8e11, VolumeUSD: 3.2e10, Timestamp: base.Add(time.Hour)},
	)

	path := filepath.Join(t.TempDir(), "out", "readings.csv")
	to := base.Add(30 * time.Minute)
	require.NoError(t, a.Export(context.Background(), ExportOptions{CSVPath: path, To: &to}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Equal(t, csvHeader, records[0])
	require.Len(t, records, 4, "header plus readings before --to")
	require.Equal(t, []string{"1", "bitcoin", "50000", "980000000000", "32000000000", "2024-05-01 12:00:00"}, records[1])
	require.Equal(t, "ethereum", records[2][1])
	require.Equal(t, "3000.5", records[2][2])
	require.Equal(t, "2024-05-01 12:01:00", records[3][5])
}

func TestExportRequiresPathAndOrderedRange(t *testing.T) {
	a, _ := testApp(t)
	require.Error(t, a.Export(context.Background(), ExportOptions{}))

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	err := a.Export(context.Background(), ExportOptions{CSVPath: filepath.Join(t.TempDir(), "x.csv"), From: &from, To: &to})
	require.Error(t, err)
}

func TestDownsampleReadingsKeepsEveryAsset(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var readings []storage.PriceReading
	for i := 0; i < 50; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		readings = append(readings,
			storage.PriceReading{ID: int64(2*i + 1), Asset: "bitcoin", Timestamp: ts},
			storage.PriceReading{ID: int64(2*i + 2), Asset: "ethereum", Timestamp: ts},
		)
	}

	out := downsampleReadings(readings, 10)
	require.Len(t, out, 10)
	counts := map[string]int{}
	for i, r := range out {
		counts[r.Asset]++
		if i > 0 {
			require.False(t, r.Timestamp.Before(out[i-1].Timestamp))
		}
	}
	require.Equal(t, 5, counts["bitcoin"])
	require.Equal(t, 5, counts["ethereum"])
}

func TestVisualizeWritesCharts(t *testing.T) {
	a, out := testApp(t)
	require.NoError(t, a.Visualize(context.Background(), VisualizeOptions{}))

	for _, name := range []string{visualizer.TrendsFile, visualizer.ComparisonFile, visualizer.MetricsFile("bitcoin"), visualizer.MetricsFile("ethereum")} {
		_, err := os.Stat(filepath.Join(a.Config.Visualizer.OutputDir, name))
		require.NoError(t, err, name)
	}
	require.Contains(t, out.String(), "Generating cryptocurrency visualizations...")
	require.Contains(t, out.String(), "Summary Statistics (Last 24 Hours):")
}
