// Package config loads application configuration from defaults, an optional
// YAML file, a .env file and environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"signal-trade-lab/internal/domain"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Capital holds the capital model parameters as decimal strings.
type Capital struct {
	InitialInvestment  string `yaml:"initial_investment"`
	InvestmentFraction string `yaml:"investment_fraction"`
	Leverage           string `yaml:"leverage"`
	FeeRate            string `yaml:"fee_rate"` // percent of notional per trade
	QuantityPrecision  int32  `yaml:"quantity_precision"`
}

// Report configures report rendering.
type Report struct {
	Currency  string `yaml:"currency"`
	Location  string `yaml:"location"` // IANA zone for month buckets
	OutputDir string `yaml:"output_dir"`
}

// Storage selects where messages, trades and pairing state live.
type Storage struct {
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional monthly statistics history
}

// Feed configures the live message feed.
type Feed struct {
	URL          string        `yaml:"url"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Config collects every configuration leaf.
type Config struct {
	Capital Capital `yaml:"capital"`
	Report  Report  `yaml:"report"`
	Storage Storage `yaml:"storage"`
	Feed    Feed    `yaml:"feed"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Capital: Capital{
			InitialInvestment:  "1000",
			InvestmentFraction: "0.1",
			Leverage:           "20",
			FeeRate:            "0.02",
			QuantityPrecision:  domain.DefaultQuantityPrecision,
		},
		Report: Report{
			Currency:  "USDT",
			Location:  "UTC",
			OutputDir: "reports",
		},
		Storage: Storage{
			Backend: BackendFile,
			DataDir: "data",
		},
		Feed: Feed{
			ReconnectMin: time.Second,
			ReconnectMax: 30 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Addr: ":9108",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when path is empty), then .env, then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STL_INITIAL_INVESTMENT":  &c.Capital.InitialInvestment,
		"STL_INVESTMENT_FRACTION": &c.Capital.InvestmentFraction,
		"STL_LEVERAGE":            &c.Capital.Leverage,
		"STL_FEE_RATE":            &c.Capital.FeeRate,
		"STL_CURRENCY":            &c.Report.Currency,
		"STL_LOCATION":            &c.Report.Location,
		"STL_REPORT_DIR":          &c.Report.OutputDir,
		"STL_STORAGE":             &c.Storage.Backend,
		"STL_DATA_DIR":            &c.Storage.DataDir,
		"POSTGRES_DSN":            &c.Storage.PostgresDSN,
		"CLICKHOUSE_DSN":          &c.Storage.ClickhouseDSN,
		"STL_FEED_URL":            &c.Feed.URL,
		"STL_LOG_LEVEL":           &c.Log.Level,
		"STL_LOG_FORMAT":          &c.Log.Format,
		"STL_METRICS_ADDR":        &c.Metrics.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("STL_QUANTITY_PRECISION"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("STL_QUANTITY_PRECISION: %w", err)
		}
		c.Capital.QuantityPrecision = int32(n)
	}

	durations := map[string]*time.Duration{
		"STL_FEED_RECONNECT_MIN": &c.Feed.ReconnectMin,
		"STL_FEED_RECONNECT_MAX": &c.Feed.ReconnectMax,
		"STL_FEED_PING_INTERVAL": &c.Feed.PingInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// CapitalModel converts the capital section to a domain model.
func (c *Config) CapitalModel() (domain.CapitalModel, error) {
	fields := []struct {
		name string
		raw  string
	}{
		{"initial_investment", c.Capital.InitialInvestment},
		{"investment_fraction", c.Capital.InvestmentFraction},
		{"leverage", c.Capital.Leverage},
		{"fee_rate", c.Capital.FeeRate},
	}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return domain.CapitalModel{}, fmt.Errorf("capital.%s: %w", f.name, err)
		}
		values[i] = v
	}

	return domain.CapitalModel{
		InitialInvestment:  values[0],
		InvestmentFraction: values[1],
		Leverage:           values[2],
		FeeRate:            values[3],
		QuantityPrecision:  c.Capital.QuantityPrecision,
	}, nil
}

// TimeLocation loads the report time zone.
func (c *Config) TimeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Location)
	if err != nil {
		return nil, fmt.Errorf("report.location: %w", err)
	}
	return loc, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	model, err := c.CapitalModel()
	if err != nil {
		errs = append(errs, err)
	} else {
		if !model.InitialInvestment.IsPositive() {
			errs = append(errs, errors.New("capital.initial_investment must be positive"))
		}
		if err := model.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Capital.QuantityPrecision < 0 {
		errs = append(errs, errors.New("capital.quantity_precision must not be negative"))
	}

	if _, err := c.TimeLocation(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the file backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of file, postgres", c.Storage.Backend))
	}

	if c.Feed.ReconnectMin <= 0 || c.Feed.ReconnectMax < c.Feed.ReconnectMin {
		errs = append(errs, errors.New("feed reconnect backoff must satisfy 0 < min <= max"))
	}

	return errors.Join(errs...)
}
