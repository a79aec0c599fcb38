package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-tracker/internal/config"
)

const (
	pgSchemaSQL = `CREATE TABLE IF NOT EXISTS crypto_prices (
        id BIGSERIAL PRIMARY KEY,
        cryptocurrency TEXT,
        price_usd DOUBLE PRECISION,
        market_cap_usd DOUBLE PRECISION,
        volume_usd DOUBLE PRECISION,
        timestamp TIMESTAMP
    );`

	pgIndexSQL = `CREATE INDEX IF NOT EXISTS idx_crypto_prices_asset_ts
    ON crypto_prices (cryptocurrency, timestamp);`

	pgInsertSQL = `INSERT INTO crypto_prices
        (cryptocurrency, price_usd, market_cap_usd, volume_usd, timestamp)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id;`

	pgQueryRangeSQL = `SELECT id, cryptocurrency, price_usd, market_cap_usd, volume_usd, timestamp
    FROM crypto_prices
    WHERE ($1 = '' OR cryptocurrency = $1)
      AND ($2::timestamp IS NULL OR timestamp >= $2)
    ORDER BY timestamp ASC, id ASC;`

	pgLatestSQL = `SELECT p.id, p.cryptocurrency, p.price_usd, p.market_cap_usd, p.volume_usd, p.timestamp
    FROM crypto_prices p
    JOIN (
        SELECT cryptocurrency, MAX(id) AS max_id
        FROM crypto_prices
        GROUP BY cryptocurrency
    ) latest ON p.id = latest.max_id
    ORDER BY p.cryptocurrency;`

	pgCountSQL = `SELECT COUNT(*) FROM crypto_prices;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := parsePoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

func parsePoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if poolConfig.MinConns > poolConfig.MaxConns {
		poolConfig.MinConns = poolConfig.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	return poolConfig, nil
}

// PostgresStore keeps readings in a PostgreSQL table with the same columns as the sqlite file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a PostgresStore.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InitSchema creates crypto_prices if it does not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pgSchemaSQL); err != nil {
		return fmt.Errorf("create crypto_prices: %w", err)
	}
	if _, err := pool.Exec(ctx, pgIndexSQL); err != nil {
		return fmt.Errorf("create crypto_prices index: %w", err)
	}
	return nil
}

// Append inserts one reading and returns its id.
func (s *PostgresStore) Append(ctx context.Context, reading PriceReading) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	scanErr := pool.QueryRow(ctx, pgInsertSQL,
		reading.Asset,
		reading.PriceUSD,
		reading.MarketCapUSD,
		reading.VolumeUSD,
		reading.Timestamp.UTC(),
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("append reading: %w", scanErr)
	}
	return id, nil
}

// QueryRange lists readings matching filter in ascending timestamp order.
func (s *PostgresStore) QueryRange(ctx context.Context, filter Filter) ([]PriceReading, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if filter.Since != nil {
		utc := filter.Since.UTC()
		since = &utc
	}

	rows, queryErr := pool.Query(ctx, pgQueryRangeSQL, filter.Asset, since)
	if queryErr != nil {
		return nil, fmt.Errorf("query range: %w", queryErr)
	}
	return collectPgRows(rows)
}

// LatestPerAsset returns the most recently inserted reading of every asset, ordered by asset.
func (s *PostgresStore) LatestPerAsset(ctx context.Context) ([]PriceReading, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgLatestSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("latest per asset: %w", queryErr)
	}
	return collectPgRows(rows)
}

// Count counts stored readings.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, pgCountSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count readings: %w", scanErr)
	}
	return count, nil
}

func collectPgRows(rows pgx.Rows) ([]PriceReading, error) {
	defer rows.Close()

	readings := make([]PriceReading, 0)
	for rows.Next() {
		var reading PriceReading
		if err := rows.Scan(
			&reading.ID,
			&reading.Asset,
			&reading.PriceUSD,
			&reading.MarketCapUSD,
			&reading.VolumeUSD,
			&reading.Timestamp,
		); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		readings = append(readings, reading)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return readings, nil
}

var _ Store = (*PostgresStore)(nil)
