package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

const sourceStore = "store"

// LatestPrice is one entry of the current price header.
type LatestPrice struct {
	Asset     string    `json:"asset"`
	Name      string    `json:"name"`
	PriceUSD  float64   `json:"price_usd"`
	Display   string    `json:"display"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// LatestResponse is the /api/latest and websocket payload.
type LatestResponse struct {
	Updated time.Time     `json:"updated"`
	Prices  []LatestPrice `json:"prices"`
}

// Point is one reading in a history response.
type Point struct {
	Timestamp    time.Time `json:"timestamp"`
	PriceUSD     float64   `json:"price_usd"`
	MarketCapUSD float64   `json:"market_cap_usd"`
	VolumeUSD    float64   `json:"volume_usd"`
}

// SeriesResponse holds the readings of one asset.
type SeriesResponse struct {
	Asset  string  `json:"asset"`
	Points []Point `json:"points"`
}

// SummaryResponse is a formatted row of the statistics table.
type SummaryResponse struct {
	Asset        string  `json:"asset"`
	Name         string  `json:"name"`
	Samples      int     `json:"samples"`
	CurrentPrice string  `json:"current_price"`
	ChangePct    float64 `json:"change_pct"`
	Change       string  `json:"change"`
	High         string  `json:"high"`
	Low          string  `json:"low"`
	AvgVolume    string  `json:"avg_volume"`
}

// HistoryResponse is the /api/history payload.
type HistoryResponse struct {
	Window    string            `json:"window"`
	Since     time.Time         `json:"since"`
	Series    []SeriesResponse  `json:"series"`
	Summaries []SummaryResponse `json:"summaries"`
}

// latest reads the newest stored reading per asset and, when a live source is
// configured, overlays a fresh price. A failed live read keeps the stored one.
func (s *Server) latest(ctx context.Context) (LatestResponse, error) {
	resp := LatestResponse{Updated: s.now().UTC(), Prices: []LatestPrice{}}

	store, err := s.open(ctx)
	if err != nil {
		return resp, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	rows, err := store.LatestPerAsset(ctx)
	if err != nil {
		return resp, fmt.Errorf("latest per asset: %w", err)
	}

	for _, series := range analysis.GroupByAsset(rows, s.assets) {
		entry := LatestPrice{Asset: series.Asset, Name: format.Title(series.Asset), Source: sourceStore}
		stored := len(series.Readings) > 0
		if stored {
			last := series.Readings[len(series.Readings)-1]
			entry.PriceUSD = last.PriceUSD
			entry.Timestamp = last.Timestamp
		}

		if s.live != nil {
			price, liveErr := s.live.FetchPrice(ctx, series.Asset)
			if liveErr == nil {
				entry.PriceUSD = price
				entry.Timestamp = resp.Updated.Truncate(time.Second)
				entry.Source = s.opts.LiveSource
				stored = true
			} else {
				s.logger.Warn().Err(liveErr).Str("asset", series.Asset).Msg("live price unavailable; using stored price")
			}
		}

		if !stored {
			continue
		}
		entry.Display = format.USD(entry.PriceUSD)
		resp.Prices = append(resp.Prices, entry)
	}
	return resp, nil
}

func (s *Server) latestPayload(ctx context.Context) ([]byte, error) {
	resp, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// history loads the window, grouped per asset and downsampled for display.
func (s *Server) history(ctx context.Context, window string, span time.Duration, asset string) (HistoryResponse, []analysis.Series, error) {
	since := s.now().UTC().Add(-span)
	resp := HistoryResponse{Window: window, Since: since, Series: []SeriesResponse{}, Summaries: []SummaryResponse{}}

	store, err := s.open(ctx)
	if err != nil {
		return resp, nil, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	readings, err := store.QueryRange(ctx, storage.Filter{Asset: asset, Since: &since})
	if err != nil {
		return resp, nil, fmt.Errorf("query history: %w", err)
	}

	order := s.assets
	if asset != "" {
		order = []string{asset}
	}
	groups := analysis.GroupByAsset(readings, order)

	for i := range groups {
		if summary, ok := analysis.Summarize(groups[i]); ok {
			resp.Summaries = append(resp.Summaries, summaryResponse(summary))
		}
		groups[i].Readings = analysis.Downsample(groups[i].Readings, s.opts.MaxPoints)

		points := make([]Point, 0, len(groups[i].Readings))
		for _, r := range groups[i].Readings {
			points = append(points, Point{
				Timestamp:    r.Timestamp,
				PriceUSD:     r.PriceUSD,
				MarketCapUSD: r.MarketCapUSD,
				VolumeUSD:    r.VolumeUSD,
			})
		}
		resp.Series = append(resp.Series, SeriesResponse{Asset: groups[i].Asset, Points: points})
	}
	return resp, groups, nil
}

func summaryResponse(s analysis.Summary) SummaryResponse {
	return SummaryResponse{
		Asset:        s.Asset,
		Name:         format.Title(s.Asset),
		Samples:      s.Samples,
		CurrentPrice: format.USD(s.LastPrice),
		ChangePct:    s.ChangePct,
		Change:       format.Percent(s.ChangePct),
		High:         format.USD(s.High),
		Low:          format.USD(s.Low),
		AvgVolume:    format.USD(s.AvgVolume),
	}
}
