package storage

import "time"

// PriceReading is one row of crypto_prices: a single asset observed at a single tick.
type PriceReading struct {
	ID           int64
	Asset        string
	PriceUSD     float64
	MarketCapUSD float64
	VolumeUSD    float64
	Timestamp    time.Time
}

// Filter narrows QueryRange. Zero values mean "no constraint".
type Filter struct {
	Asset string
	Since *time.Time
}
