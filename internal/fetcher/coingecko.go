package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/version"
)

const (
	simplePricePath    = "/simple/price"
	defaultCoinGecko   = "https://api.coingecko.com/api/v3"
	coinGeckoKeyHeader = "x-cg-demo-api-key"
)

// CoinGeckoOptions parameterise the CoinGecko simple-price client.
type CoinGeckoOptions struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// CoinGecko fetches quotes from the CoinGecko simple-price endpoint.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko client.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCoinGecko
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchQuote requests price, market cap and 24h volume in USD for asset.
func (c *CoinGecko) FetchQuote(ctx context.Context, asset string) (Quote, error) {
	if strings.TrimSpace(asset) == "" {
		return Quote{}, fmt.Errorf("asset id required")
	}

	query := url.Values{}
	query.Set("ids", asset)
	query.Set("vs_currencies", "usd")
	query.Set("include_market_cap", "true")
	query.Set("include_24hr_vol", "true")

	endpoint := c.baseURL + simplePricePath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	if c.opts.APIKey != "" {
		req.Header.Set(coinGeckoKeyHeader, c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("request %s: %w", asset, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("read %s response: %w", asset, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, parseHTTPError(resp.StatusCode, payload)
	}

	quote, err := decodeSimplePrice(asset, payload)
	if err != nil {
		return Quote{}, err
	}

	c.logger.Debug().Str("asset", asset).Float64("price_usd", quote.PriceUSD).Msg("quote fetched")
	return quote, nil
}

// FetchPrice returns only the USD price of asset.
func (c *CoinGecko) FetchPrice(ctx context.Context, asset string) (float64, error) {
	quote, err := c.FetchQuote(ctx, asset)
	if err != nil {
		return 0, err
	}
	return quote.PriceUSD, nil
}

type simplePriceEntry struct {
	USD          *float64 `json:"usd"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
}

// decodeSimplePrice is strict: an unknown or missing field means the upstream
// shape changed and the asset is skipped for this tick.
func decodeSimplePrice(asset string, payload []byte) (Quote, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()

	var body map[string]simplePriceEntry
	if err := decoder.Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrMalformedQuote, asset, err)
	}

	entry, ok := body[asset]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrAssetMissing, asset)
	}

	missing := make([]string, 0, 3)
	if entry.USD == nil {
		missing = append(missing, "usd")
	}
	if entry.USDMarketCap == nil {
		missing = append(missing, "usd_market_cap")
	}
	if entry.USD24hVol == nil {
		missing = append(missing, "usd_24h_vol")
	}
	if len(missing) > 0 {
		return Quote{}, fmt.Errorf("%w: %s: missing %s", ErrMalformedQuote, asset, strings.Join(missing, ","))
	}

	return Quote{
		Asset:        asset,
		PriceUSD:     *entry.USD,
		MarketCapUSD: *entry.USDMarketCap,
		VolumeUSD:    *entry.USD24hVol,
	}, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseHTTPError(status int, payload []byte) error {
	base := fmt.Errorf("coingecko api error (%d)", status)
	if status == http.StatusTooManyRequests {
		base = fmt.Errorf("%w (%d)", ErrRateLimited, status)
	}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("%w: %s", base, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%w: %s", base, apiErr.Error)
		}
	}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		return fmt.Errorf("%w: %s", base, trimmed)
	}
	return base
}

var (
	_ QuoteFetcher = (*CoinGecko)(nil)
	_ PriceFetcher = (*CoinGecko)(nil)
)
