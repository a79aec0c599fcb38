// Package analysis groups stored readings and derives the figures shown by
// the visualizer, the dashboard and the show command.
package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"crypto-tracker/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// Series is the readings of one asset in ascending time order.
type Series struct {
	Asset    string
	Readings []storage.PriceReading
}

// Summary holds per-asset statistics over a window.
type Summary struct {
	Asset      string
	Samples    int
	FirstPrice float64
	LastPrice  float64
	ChangePct  float64
	High       float64
	Low        float64
	AvgVolume  float64
}

// GroupByAsset splits readings per asset. Assets listed in order always get a
// series (possibly empty), in that order; any other asset found follows,
// sorted by name. Input order is preserved inside each series.
func GroupByAsset(readings []storage.PriceReading, order []string) []Series {
	buckets := make(map[string][]storage.PriceReading)
	for _, r := range readings {
		buckets[r.Asset] = append(buckets[r.Asset], r)
	}

	result := make([]Series, 0, len(order)+len(buckets))
	seen := make(map[string]struct{}, len(order))
	for _, asset := range order {
		if _, dup := seen[asset]; dup {
			continue
		}
		seen[asset] = struct{}{}
		result = append(result, Series{Asset: asset, Readings: buckets[asset]})
	}

	extra := make([]string, 0)
	for asset := range buckets {
		if _, ok := seen[asset]; !ok {
			extra = append(extra, asset)
		}
	}
	sort.Strings(extra)
	for _, asset := range extra {
		result = append(result, Series{Asset: asset, Readings: buckets[asset]})
	}
	return result
}

// Normalize rebases prices so the first reading equals 100. It returns false
// when there is nothing to rebase against.
func Normalize(readings []storage.PriceReading) ([]float64, bool) {
	if len(readings) == 0 || readings[0].PriceUSD == 0 {
		return nil, false
	}
	base := readings[0].PriceUSD
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.PriceUSD / base * 100
	}
	return out, true
}

// Summarize computes window statistics. It returns false for an empty series.
func Summarize(series Series) (Summary, bool) {
	if len(series.Readings) == 0 {
		return Summary{Asset: series.Asset}, false
	}

	first := series.Readings[0].PriceUSD
	last := series.Readings[len(series.Readings)-1].PriceUSD
	sum := Summary{
		Asset:      series.Asset,
		Samples:    len(series.Readings),
		FirstPrice: first,
		LastPrice:  last,
		High:       math.Inf(-1),
		Low:        math.Inf(1),
	}

	volume := decimal.Zero
	for _, r := range series.Readings {
		sum.High = math.Max(sum.High, r.PriceUSD)
		sum.Low = math.Min(sum.Low, r.PriceUSD)
		volume = volume.Add(decimal.NewFromFloat(r.VolumeUSD))
	}
	sum.AvgVolume = volume.Div(decimal.NewFromInt(int64(len(series.Readings)))).InexactFloat64()
	sum.ChangePct = ChangePct(first, last)
	return sum, true
}

// ChangePct is (last-first)/first in percent; zero when first is zero.
func ChangePct(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	f := decimal.NewFromFloat(first)
	return decimal.NewFromFloat(last).Sub(f).Div(f).Mul(hundred).InexactFloat64()
}

// Downsample keeps at most max readings, evenly spaced, always including the
// first and last one.
func Downsample(readings []storage.PriceReading, max int) []storage.PriceReading {
	if max <= 0 || len(readings) <= max {
		return readings
	}
	if max == 1 {
		return readings[len(readings)-1:]
	}

	result := make([]storage.PriceReading, 0, max)
	step := float64(len(readings)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(readings) {
			idx = len(readings) - 1
		}
		result = append(result, readings[idx])
	}
	return result
}
