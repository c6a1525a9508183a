// Package config loads and validates the engine configuration. The loaded
// Config is immutable; it is built once at startup and passed to the engine
// by value, never mutated through process-wide state.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fariaslabs/sgfsync/constants"
	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

// Intervals holds the per-stream polling cadence in minutes, matching the
// cadence the source system was operated with.
type Intervals struct {
	Sales     int `json:"sales" validate:"gte=0"`
	Purchases int `json:"purchases" validate:"gte=0"`
	Products  int `json:"products" validate:"gte=0"`
	Stock     int `json:"stock" validate:"gte=0"`
	Sellers   int `json:"sellers" validate:"gte=0"`
	Suppliers int `json:"suppliers" validate:"gte=0"`
}

type Config struct {
	// APIBaseURL is the gateway root, e.g. https://gateway.example.com/sgfpod1
	APIBaseURL string `json:"api_base_url" validate:"required,url"`
	// AuthToken is the integration bearer token.
	AuthToken string `json:"auth_token" validate:"required"`
	// DataDir holds the mirror store, logs and the sync journal.
	DataDir string `json:"data_dir" validate:"required"`
	// HistoricalStart is the first day of the historical load (YYYY-MM-DD).
	HistoricalStart string `json:"historical_start" validate:"required"`
	// ChunkDays is the backfill window width in days.
	ChunkDays int `json:"backfill_chunk_days" validate:"gte=0"`
	// RequestTimeoutSec bounds a single gateway request.
	RequestTimeoutSec int `json:"request_timeout_sec" validate:"gte=0"`

	Intervals Intervals `json:"intervals"`
}

// Load reads a JSON or YAML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := utils.UnmarshalFile(path, cfg); err != nil {
		return nil, errs.Config.Wrap(err, "failed to load config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields, applies defaults and verifies the data
// directory is writable. Any failure here is startup-fatal.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.Config.Wrap(err, "invalid configuration")
	}

	if _, err := time.Parse("2006-01-02", c.HistoricalStart); err != nil {
		return errs.Config.New("historical_start must be YYYY-MM-DD, got %q", c.HistoricalStart)
	}

	if c.ChunkDays == 0 {
		c.ChunkDays = constants.DefaultChunkDays
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = int(constants.DefaultRequestTimeout.Seconds())
	}
	defaults := Intervals{Sales: 10, Purchases: 15, Products: 15, Stock: 10, Sellers: 180, Suppliers: 20}
	applyDefault(&c.Intervals.Sales, defaults.Sales)
	applyDefault(&c.Intervals.Purchases, defaults.Purchases)
	applyDefault(&c.Intervals.Products, defaults.Products)
	applyDefault(&c.Intervals.Stock, defaults.Stock)
	applyDefault(&c.Intervals.Sellers, defaults.Sellers)
	applyDefault(&c.Intervals.Suppliers, defaults.Suppliers)

	if err := ensureWritable(c.DataDir); err != nil {
		return errs.Config.Wrap(err, "data dir %s is not writable", c.DataDir)
	}

	return nil
}

// HistoricalStartTime returns the parsed historical start date. Validate
// must have succeeded first.
func (c *Config) HistoricalStartTime() time.Time {
	t, _ := time.Parse("2006-01-02", c.HistoricalStart)
	return t
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, constants.StoreFileName)
}

func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, constants.JournalFileName)
}

// SyncID is a stable identity for this configuration, used to tag log lines
// of one deployment.
func (c *Config) SyncID() string {
	return utils.ComputeHash(struct {
		URL     string
		DataDir string
	}{c.APIBaseURL, c.DataDir})
}

// Streams returns the static stream definitions driven by this config.
// Streams are never created or destroyed at runtime.
func (c *Config) Streams() []types.Stream {
	minutes := func(m int) time.Duration { return time.Duration(m) * time.Minute }
	return []types.Stream{
		{Entity: types.Sales, Mode: types.DELTA, Interval: minutes(c.Intervals.Sales), ChunkDays: c.ChunkDays},
		{Entity: types.Purchases, Mode: types.DELTA, Interval: minutes(c.Intervals.Purchases), ChunkDays: c.ChunkDays},
		{Entity: types.Products, Mode: types.DELTA, Interval: minutes(c.Intervals.Products)},
		{Entity: types.Stock, Mode: types.DELTA, Interval: minutes(c.Intervals.Stock)},
		{Entity: types.Sellers, Mode: types.FULLSNAPSHOT, Interval: minutes(c.Intervals.Sellers)},
		{Entity: types.Suppliers, Mode: types.DELTA, Interval: minutes(c.Intervals.Suppliers)},
	}
}

func applyDefault(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
