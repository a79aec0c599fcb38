package analysis

import (
	"math"
	"testing"
	"time"

	"crypto-tracker/internal/storage"
)

func sample(asset string, price, volume float64, minute int) storage.PriceReading {
	return storage.PriceReading{
		Asset:     asset,
		PriceUSD:  price,
		VolumeUSD: volume,
		Timestamp: time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC),
	}
}

func TestGroupByAssetKeepsConfiguredOrder(t *testing.T) {
	readings := []storage.PriceReading{
		sample("ethereum", 3000, 1, 0),
		sample("dogecoin", 0.1, 1, 0),
		sample("bitcoin", 50000, 1, 0),
		sample("ethereum", 3100, 1, 1),
		sample("cardano", 0.5, 1, 1),
	}

	groups := GroupByAsset(readings, []string{"bitcoin", "ethereum", "solana"})
	want := []string{"bitcoin", "ethereum", "solana", "cardano", "dogecoin"}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, g := range groups {
		if g.Asset != want[i] {
			t.Fatalf("group %d: expected %s, got %s", i, want[i], g.Asset)
		}
	}
	if len(groups[1].Readings) != 2 || groups[1].Readings[1].PriceUSD != 3100 {
		t.Fatalf("ethereum readings out of order: %+v", groups[1].Readings)
	}
	if len(groups[2].Readings) != 0 {
		t.Fatal("solana has no readings and should be empty")
	}
}

func TestNormalize(t *testing.T) {
	values, ok := Normalize([]storage.PriceReading{sample("bitcoin", 200, 0, 0), sample("bitcoin", 220, 0, 1), sample("bitcoin", 180, 0, 2)})
	if !ok {
		t.Fatal("normalize should succeed")
	}
	want := []float64{100, 110, 90}
	for i := range want {
		if math.Abs(values[i]-want[i]) > 1e-9 {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], values[i])
		}
	}

	if _, ok := Normalize(nil); ok {
		t.Fatal("empty input cannot be normalized")
	}
	if _, ok := Normalize([]storage.PriceReading{sample("bitcoin", 0, 0, 0)}); ok {
		t.Fatal("zero base cannot be normalized")
	}
}

func TestSummarize(t *testing.T) {
	series := Series{Asset: "bitcoin", Readings: []storage.PriceReading{
		sample("bitcoin", 100, 10, 0),
		sample("bitcoin", 150, 20, 1),
		sample("bitcoin", 90, 30, 2),
		sample("bitcoin", 110, 40, 3),
	}}

	sum, ok := Summarize(series)
	if !ok {
		t.Fatal("summary expected")
	}
	if sum.LastPrice != 110 || sum.High != 150 || sum.Low != 90 || sum.Samples != 4 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if math.Abs(sum.ChangePct-10) > 1e-9 {
		t.Fatalf("expected +10%% change, got %v", sum.ChangePct)
	}
	if math.Abs(sum.AvgVolume-25) > 1e-9 {
		t.Fatalf("expected average volume 25, got %v", sum.AvgVolume)
	}

	if _, ok := Summarize(Series{Asset: "bitcoin"}); ok {
		t.Fatal("empty series has no summary")
	}
}

func TestDownsample(t *testing.T) {
	readings := make([]storage.PriceReading, 10)
	for i := range readings {
		readings[i] = sample("bitcoin", float64(i), 0, i)
	}

	out := Downsample(readings, 4)
	if len(out) != 4 {
		t.Fatalf("expected 4 points, got %d", len(out))
	}
	if out[0].PriceUSD != 0 || out[3].PriceUSD != 9 {
		t.Fatalf("first and last must be kept: %+v", out)
	}
	if len(Downsample(readings, 0)) != 10 || len(Downsample(readings, 20)) != 10 {
		t.Fatal("no downsampling expected")
	}
}
