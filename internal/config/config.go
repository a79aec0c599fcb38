package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"crypto-tracker/internal/logging"
	"crypto-tracker/internal/version"
)

const (
	// DriverSQLite stores readings in a single local database file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores readings in a PostgreSQL database.
	DriverPostgres = "postgres"
)

// DashboardWindows lists the selectable dashboard time windows.
var DashboardWindows = []string{"1h", "24h", "7d"}

// DotEnvFile is loaded into the process environment before env overrides are read.
var DotEnvFile = ".env"

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Visualizer VisualizerConfig `mapstructure:"visualizer"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig selects and parameterises the reading store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	WAL             bool          `mapstructure:"wal"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CollectorConfig governs the polling loop and the upstream price source.
type CollectorConfig struct {
	Assets         []string      `mapstructure:"assets"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Interval       time.Duration `mapstructure:"interval"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// VisualizerConfig controls static chart output.
type VisualizerConfig struct {
	OutputDir string        `mapstructure:"output_dir"`
	Window    time.Duration `mapstructure:"window"`
	MaxPoints int           `mapstructure:"max_points"`
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
}

// DashboardConfig controls the web dashboard.
type DashboardConfig struct {
	Addr            string        `mapstructure:"addr"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	DefaultWindow   string        `mapstructure:"default_window"`
	LiveSource      string        `mapstructure:"live_source"`
	MaxPoints       int           `mapstructure:"max_points"`
}

// OracleConfig covers the on-chain Chainlink price feeds.
type OracleConfig struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	Feeds          map[string]string `mapstructure:"feeds"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("CRYPTOTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if DotEnvFile == "" {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptotracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.compress", true)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "crypto_data.db")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.wal", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("collector.assets", []string{"bitcoin", "ethereum"})
	v.SetDefault("collector.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("collector.interval", "60s")
	v.SetDefault("collector.startup_delay", "0s")
	v.SetDefault("collector.request_timeout", "10s")
	v.SetDefault("collector.user_agent", version.UserAgent())

	v.SetDefault("visualizer.output_dir", ".")
	v.SetDefault("visualizer.window", "24h")
	v.SetDefault("visualizer.max_points", 2000)
	v.SetDefault("visualizer.width", 1200)
	v.SetDefault("visualizer.height", 600)

	v.SetDefault("dashboard.addr", ":8501")
	v.SetDefault("dashboard.refresh_interval", "60s")
	v.SetDefault("dashboard.default_window", "24h")
	v.SetDefault("dashboard.live_source", "")
	v.SetDefault("dashboard.max_points", 1500)

	v.SetDefault("oracle.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalise() {
	assets := make([]string, 0, len(c.Collector.Assets))
	seen := make(map[string]struct{}, len(c.Collector.Assets))
	for _, asset := range c.Collector.Assets {
		asset = strings.ToLower(strings.TrimSpace(asset))
		if asset == "" {
			continue
		}
		if _, dup := seen[asset]; dup {
			continue
		}
		seen[asset] = struct{}{}
		assets = append(assets, asset)
	}
	c.Collector.Assets = assets
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Dashboard.LiveSource = strings.ToLower(strings.TrimSpace(c.Dashboard.LiveSource))
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Collector.Assets) == 0 {
		return fmt.Errorf("collector.assets must list at least one asset")
	}
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be greater than zero")
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Visualizer.Window <= 0 {
		return fmt.Errorf("visualizer.window must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if !validWindow(c.Dashboard.DefaultWindow) {
		return fmt.Errorf("dashboard.default_window must be one of %s", strings.Join(DashboardWindows, ","))
	}
	switch c.Dashboard.LiveSource {
	case "", "coingecko":
	case "chainlink":
		if c.Oracle.RPCURL == "" {
			return fmt.Errorf("oracle.rpc_url is required when dashboard.live_source is chainlink")
		}
	default:
		return fmt.Errorf("dashboard.live_source %q is not supported", c.Dashboard.LiveSource)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

func validWindow(w string) bool {
	for _, candidate := range DashboardWindows {
		if candidate == w {
			return true
		}
	}
	return false
}
