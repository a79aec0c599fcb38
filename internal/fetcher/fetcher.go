package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrMalformedQuote marks an upstream payload that does not have the expected shape.
	ErrMalformedQuote = errors.New("malformed quote")
	// ErrAssetMissing marks a response (or feed table) without the requested asset.
	ErrAssetMissing = errors.New("asset missing from upstream response")
	// ErrRateLimited marks an HTTP 429 from the upstream source.
	ErrRateLimited = errors.New("upstream rate limit reached")
)

// Quote is the market snapshot of one asset as reported upstream.
type Quote struct {
	Asset        string
	PriceUSD     float64
	MarketCapUSD float64
	VolumeUSD    float64
}

// QuoteFetcher retrieves price, market cap and 24h volume for one asset.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, asset string) (Quote, error)
}

// PriceFetcher retrieves only the current USD price of one asset.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, asset string) (float64, error)
}
