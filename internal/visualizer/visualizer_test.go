package visualizer

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/storage"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLite(context.Background(), config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "crypto_data.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

func newVisualizer(t *testing.T, store storage.ReadingReader) (*Visualizer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "charts")
	v := New(Options{OutputDir: dir, Window: 24 * time.Hour, Width: 640, Height: 360}, []string{"bitcoin", "ethereum"}, store, zerolog.Nop())
	v.now = func() time.Time { return now }
	return v, dir
}

func requirePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err, path)
	require.Positive(t, cfg.Width)
	require.Positive(t, cfg.Height)
}

func TestGenerateEmptyStoreWritesPlaceholders(t *testing.T) {
	v, dir := newVisualizer(t, openStore(t))

	report, err := v.Generate(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Summaries)

	for _, name := range []string{TrendsFile, ComparisonFile, MetricsFile("bitcoin"), MetricsFile("ethereum")} {
		requirePNG(t, filepath.Join(dir, name))
	}
	require.Len(t, report.Files, 4)

	var out bytes.Buffer
	require.NoError(t, WriteSummary(&out, report))
	require.Contains(t, out.String(), "Summary Statistics (Last 24 Hours):")
	require.Contains(t, out.String(), "No data available for this time period")
}

func TestGenerateWithReadings(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	prices := map[string][]float64{
		"bitcoin":  {50000, 50500, 51175},
		"ethereum": {3000, 2990, 3010},
	}
	for i := 0; i < 3; i++ {
		ts := now.Add(-time.Duration(3-i) * time.Hour)
		for _, asset := range []string{"bitcoin", "ethereum"} {
			p := prices[asset][i]
			_, err := store.Append(ctx, storage.PriceReading{
				Asset: asset, PriceUSD: p, MarketCapUSD: p * 1e7, VolumeUSD: p * 1e5, Timestamp: ts,
			})
			require.NoError(t, err)
		}
	}
	// outside the window
	_, err := store.Append(ctx, storage.PriceReading{Asset: "bitcoin", PriceUSD: 1, Timestamp: now.Add(-48 * time.Hour)})
	require.NoError(t, err)

	v, dir := newVisualizer(t, store)
	report, err := v.Generate(ctx)
	require.NoError(t, err)

	for _, name := range []string{TrendsFile, ComparisonFile, MetricsFile("bitcoin"), MetricsFile("ethereum")} {
		requirePNG(t, filepath.Join(dir, name))
	}

	f, err := os.Open(filepath.Join(dir, MetricsFile("bitcoin")))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, 640, cfg.Width)
	require.Equal(t, 3*200, cfg.Height, "three stacked panels")

	require.Len(t, report.Summaries, 2)
	btc := report.Summaries[0]
	require.Equal(t, "bitcoin", btc.Asset)
	require.Equal(t, 3, btc.Samples)
	require.Equal(t, 51175.0, btc.LastPrice)
	require.Equal(t, 50000.0, btc.Low)
	require.InDelta(t, 2.35, btc.ChangePct, 1e-9)

	var out bytes.Buffer
	require.NoError(t, WriteSummary(&out, report))
	require.Contains(t, out.String(), "Bitcoin")
	require.Contains(t, out.String(), "$51,175.00")
	require.Contains(t, out.String(), "2.35%")
}

func TestGenerateSingleReadingIsPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	_, err := store.Append(ctx, storage.PriceReading{Asset: "bitcoin", PriceUSD: 50000, Timestamp: now.Add(-time.Hour)})
	require.NoError(t, err)

	v, dir := newVisualizer(t, store)
	report, err := v.Generate(ctx)
	require.NoError(t, err)
	requirePNG(t, filepath.Join(dir, TrendsFile))
	requirePNG(t, filepath.Join(dir, MetricsFile("bitcoin")))
	require.Len(t, report.Summaries, 1)
}

func TestPaddedRangeFlatLine(t *testing.T) {
	r := paddedRange([]float64{100, 100, 100})
	require.Less(t, r.Min, 100.0)
	require.Greater(t, r.Max, 100.0)
}

func TestMetricsFileName(t *testing.T) {
	require.Equal(t, "bitcoin_metrics.png", MetricsFile("bitcoin"))
	require.Equal(t, "usd-coin_metrics.png", MetricsFile("usd-coin"))
	require.Equal(t, "___etc_metrics.png", MetricsFile("../etc"))
}
