package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"crypto-tracker/internal/config"
)

// TimeLayout is the text form of the timestamp column. Values are UTC.
const TimeLayout = "2006-01-02 15:04:05"

const (
	sqliteSchemaSQL = `CREATE TABLE IF NOT EXISTS crypto_prices (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        cryptocurrency TEXT,
        price_usd REAL,
        market_cap_usd REAL,
        volume_usd REAL,
        timestamp DATETIME
    );`

	sqliteIndexSQL = `CREATE INDEX IF NOT EXISTS idx_crypto_prices_asset_ts
    ON crypto_prices (cryptocurrency, timestamp);`

	sqliteInsertSQL = `INSERT INTO crypto_prices
        (cryptocurrency, price_usd, market_cap_usd, volume_usd, timestamp)
    VALUES (?, ?, ?, ?, ?);`

	sqliteQueryRangeSQL = `SELECT id, cryptocurrency, price_usd, market_cap_usd, volume_usd, timestamp
    FROM crypto_prices
    WHERE (? = '' OR cryptocurrency = ?)
      AND (? = '' OR timestamp >= ?)
    ORDER BY timestamp ASC, id ASC;`

	sqliteLatestSQL = `SELECT p.id, p.cryptocurrency, p.price_usd, p.market_cap_usd, p.volume_usd, p.timestamp
    FROM crypto_prices p
    JOIN (
        SELECT cryptocurrency, MAX(id) AS max_id
        FROM crypto_prices
        GROUP BY cryptocurrency
    ) latest ON p.id = latest.max_id
    ORDER BY p.cryptocurrency;`

	sqliteCountSQL = `SELECT COUNT(*) FROM crypto_prices;`
)

// SQLiteStore keeps readings in a single database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database file described by cfg.
func NewSQLite(ctx context.Context, cfg config.DatabaseConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database.path is required")
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// One connection serialises this process's access; cross-process
	// contention is left to sqlite's own locking plus busy_timeout.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", cfg.Path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(cfg config.DatabaseConfig) string {
	pragmas := make([]string, 0, 2)
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	}
	if cfg.WAL {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	if len(pragmas) == 0 {
		return "file:" + cfg.Path
	}
	return "file:" + cfg.Path + "?" + strings.Join(pragmas, "&")
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// InitSchema creates crypto_prices if it does not exist yet.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("create crypto_prices: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteIndexSQL); err != nil {
		return fmt.Errorf("create crypto_prices index: %w", err)
	}
	return nil
}

// Append inserts one reading and returns its id.
func (s *SQLiteStore) Append(ctx context.Context, reading PriceReading) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	res, execErr := db.ExecContext(ctx, sqliteInsertSQL,
		reading.Asset,
		reading.PriceUSD,
		reading.MarketCapUSD,
		reading.VolumeUSD,
		formatTime(reading.Timestamp),
	)
	if execErr != nil {
		return 0, fmt.Errorf("append reading: %w", execErr)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append reading: last insert id: %w", err)
	}
	return id, nil
}

// QueryRange lists readings matching filter in ascending timestamp order.
func (s *SQLiteStore) QueryRange(ctx context.Context, filter Filter) ([]PriceReading, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	since := ""
	if filter.Since != nil {
		since = formatTime(*filter.Since)
	}

	rows, queryErr := db.QueryContext(ctx, sqliteQueryRangeSQL, filter.Asset, filter.Asset, since, since)
	if queryErr != nil {
		return nil, fmt.Errorf("query range: %w", queryErr)
	}
	return collectSQLRows(rows)
}

// LatestPerAsset returns the most recently inserted reading of every asset, ordered by asset.
func (s *SQLiteStore) LatestPerAsset(ctx context.Context) ([]PriceReading, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, sqliteLatestSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("latest per asset: %w", queryErr)
	}
	return collectSQLRows(rows)
}

// Count counts stored readings.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := db.QueryRowContext(ctx, sqliteCountSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count readings: %w", scanErr)
	}
	return count, nil
}

func collectSQLRows(rows *sql.Rows) ([]PriceReading, error) {
	defer rows.Close()

	readings := make([]PriceReading, 0)
	for rows.Next() {
		var (
			reading PriceReading
			ts      dbTime
		)
		if err := rows.Scan(
			&reading.ID,
			&reading.Asset,
			&reading.PriceUSD,
			&reading.MarketCapUSD,
			&reading.VolumeUSD,
			&ts,
		); err != nil {
			return nil, err
		}
		reading.Timestamp = ts.Time
		readings = append(readings, reading)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return readings, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

var parseLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTime reads the timestamp column text. Zone-less values are taken as UTC.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// dbTime accepts the driver's time.Time as well as raw text.
type dbTime struct {
	Time time.Time
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		t, err := ParseTime(v)
		if err != nil {
			return err
		}
		d.Time = t
		return nil
	case []byte:
		t, err := ParseTime(string(v))
		if err != nil {
			return err
		}
		d.Time = t
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

var _ Store = (*SQLiteStore)(nil)
