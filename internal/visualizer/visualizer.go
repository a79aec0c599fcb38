// Package visualizer renders stored readings into static PNG charts.
package visualizer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

const (
	// TrendsFile holds the USD price of every asset.
	TrendsFile = "price_trends.png"
	// ComparisonFile holds every asset rebased to 100.
	ComparisonFile = "price_comparison.png"
)

// MetricsFile names the per-asset metrics chart.
func MetricsFile(asset string) string {
	return sanitize(asset) + "_metrics.png"
}

// Options configure chart output.
type Options struct {
	OutputDir string
	Window    time.Duration
	MaxPoints int
	Width     int
	Height    int
}

// Report describes one Generate run.
type Report struct {
	Window    time.Duration
	Files     []string
	Summaries []analysis.Summary
}

// Visualizer reads a window of readings and writes the chart set.
type Visualizer struct {
	opts   Options
	assets []string
	store  storage.ReadingReader
	logger zerolog.Logger
	now    func() time.Time
}

// New builds a Visualizer for the configured assets.
func New(opts Options, assets []string, store storage.ReadingReader, logger zerolog.Logger) *Visualizer {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	return &Visualizer{
		opts:   opts,
		assets: assets,
		store:  store,
		logger: logger.With().Str("component", "visualizer").Logger(),
		now:    time.Now,
	}
}

// Generate writes the trends, comparison and per-asset metrics charts. Assets
// without enough data get a placeholder chart rather than an error.
func (v *Visualizer) Generate(ctx context.Context) (Report, error) {
	report := Report{Window: v.opts.Window}

	since := v.now().UTC().Add(-v.opts.Window)
	readings, err := v.store.QueryRange(ctx, storage.Filter{Since: &since})
	if err != nil {
		return report, fmt.Errorf("load readings: %w", err)
	}
	v.logger.Debug().Int("readings", len(readings)).Dur("window", v.opts.Window).Msg("loaded readings")

	groups := analysis.GroupByAsset(readings, v.assets)
	for i := range groups {
		groups[i].Readings = analysis.Downsample(groups[i].Readings, v.opts.MaxPoints)
	}

	if err := os.MkdirAll(v.opts.OutputDir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	hours := windowLabel(v.opts.Window)
	width, height := v.opts.Width, v.opts.Height

	if err := v.write(&report, TrendsFile, func(w io.Writer) error {
		return renderTrends(w, groups, "Cryptocurrency Prices - Last "+hours, width, height)
	}); err != nil {
		return report, err
	}

	if err := v.write(&report, ComparisonFile, func(w io.Writer) error {
		return renderComparison(w, groups, "Normalized Price Comparison - Last "+hours+" (Starting at 100)", width, height)
	}); err != nil {
		return report, err
	}

	configured := make(map[string]struct{}, len(v.assets))
	for _, asset := range v.assets {
		configured[asset] = struct{}{}
	}
	for i, series := range groups {
		if _, ok := configured[series.Asset]; !ok {
			continue
		}
		if err := v.write(&report, MetricsFile(series.Asset), func(w io.Writer) error {
			return renderMetrics(w, series, i, width, height)
		}); err != nil {
			return report, err
		}
	}

	for _, series := range groups {
		if summary, ok := analysis.Summarize(series); ok {
			report.Summaries = append(report.Summaries, summary)
		}
	}
	return report, nil
}

func (v *Visualizer) write(report *Report, name string, render func(io.Writer) error) error {
	path := filepath.Join(v.opts.OutputDir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(file); err != nil {
		file.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	v.logger.Info().Str("file", path).Msg("chart written")
	report.Files = append(report.Files, path)
	return nil
}

// WriteSummary prints the generated files and a statistics table.
func WriteSummary(w io.Writer, report Report) error {
	for _, file := range report.Files {
		fmt.Fprintf(w, "✓ Generated %s\n", file)
	}

	fmt.Fprintf(w, "\nSummary Statistics (Last %s):\n", windowLabel(report.Window))
	if len(report.Summaries) == 0 {
		fmt.Fprintln(w, "No data available for this time period")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Cryptocurrency\tCurrent Price\tPrice Change (%)\tHighest Price\tLowest Price\tAverage Volume")
	for _, s := range report.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			format.Title(s.Asset),
			format.USD(s.LastPrice),
			format.Percent(s.ChangePct),
			format.USD(s.High),
			format.USD(s.Low),
			format.USD(s.AvgVolume),
		)
	}
	return tw.Flush()
}

func windowLabel(d time.Duration) string {
	hours := d.Hours()
	if hours == float64(int64(hours)) {
		if hours == 1 {
			return "1 Hour"
		}
		return fmt.Sprintf("%d Hours", int64(hours))
	}
	return d.String()
}

func sanitize(asset string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, asset)
}
