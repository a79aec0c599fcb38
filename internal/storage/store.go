package storage

import (
	"context"
	"errors"
	"fmt"

	"crypto-tracker/internal/config"
)

var (
	// ErrNotConfigured indicates the storage handle was not initialised.
	ErrNotConfigured = errors.New("storage: not configured")
	// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
	ErrUnknownDriver = errors.New("storage: unknown driver")
)

// ReadingWriter is the append side of the store, owned by the collector.
type ReadingWriter interface {
	InitSchema(ctx context.Context) error
	Append(ctx context.Context, reading PriceReading) (int64, error)
}

// ReadingReader serves the visualizer, dashboard and query commands.
type ReadingReader interface {
	InitSchema(ctx context.Context) error
	QueryRange(ctx context.Context, filter Filter) ([]PriceReading, error)
	LatestPerAsset(ctx context.Context) ([]PriceReading, error)
	Count(ctx context.Context) (int64, error)
}

// Store aggregates both access patterns over one handle.
type Store interface {
	ReadingWriter
	ReadingReader
	Close() error
}

// Open connects to the configured backend. The schema is not touched; callers run InitSchema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLite(ctx, cfg)
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
