// Package config loads roastery settings.
//
// Settings come from three layers, later ones winning: built-in defaults, a
// YAML file, then ROASTERY_* environment variables (optionally read from a
// .env file). Command-line flags are applied on top by the CLI.
//
//	database: /var/lib/roastery/roastery.db
//	catalog: ./catalog
//	engine:
//	  default_loss_rate: 0.15
//	  ratio_tolerance: 0.001
//	  execute_timeout: 30s
//	  batch_prefix: RB
//	store:
//	  busy_timeout: 5s
//	log:
//	  level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/engine"
	"github.com/roach88/roastery/internal/store"
)

// Environment variables that override the file.
const (
	EnvDatabase = "ROASTERY_DATABASE"
	EnvCatalog  = "ROASTERY_CATALOG"
	EnvLogLevel = "ROASTERY_LOG_LEVEL"
)

// Config is the full settings surface.
type Config struct {
	Database string       `yaml:"database"`
	Catalog  string       `yaml:"catalog"`
	Engine   EngineConfig `yaml:"engine"`
	Store    StoreConfig  `yaml:"store"`
	Log      LogConfig    `yaml:"log"`
}

// EngineConfig holds planning and execution settings.
type EngineConfig struct {
	DefaultLossRate Decimal       `yaml:"default_loss_rate"`
	RatioTolerance  Decimal       `yaml:"ratio_tolerance"`
	ExecuteTimeout  time.Duration `yaml:"execute_timeout"`
	BatchPrefix     string        `yaml:"batch_prefix"`
}

// StoreConfig holds SQLite settings.
type StoreConfig struct {
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Decimal is an optional decimal read from a YAML scalar, quoted or not.
type Decimal struct {
	decimal.NullDecimal
}

// UnmarshalYAML parses the scalar's literal text, so 0.1 stays exactly 0.1.
func (d *Decimal) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", n.Line)
	}
	if n.Tag == "!!null" || n.Value == "" {
		d.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	v, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a decimal", n.Line, n.Value)
	}
	d.NullDecimal = decimal.NewNullDecimal(v)
	return nil
}

// MarshalYAML writes the decimal as a plain scalar.
func (d Decimal) MarshalYAML() (any, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Decimal.String(), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: "roastery.db",
		Catalog:  "catalog",
		Engine: EngineConfig{
			RatioTolerance: Decimal{decimal.NewNullDecimal(domain.DefaultRatioTolerance)},
			ExecuteTimeout: 30 * time.Second,
			BatchPrefix:    engine.DefaultBatchPrefix,
		},
		Store: StoreConfig{
			BusyTimeout: store.DefaultBusyTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. envFile names a dotenv file to read
// first; empty means ".env" if present.
//
// Relative database and catalog paths in the file are resolved against the
// file's directory. Unknown keys are rejected to catch typos.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadEnvFile(envFile string) error {
	if envFile == "" {
		// A missing .env is normal; settings may come from the environment directly.
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed loading env file %s: %w", envFile, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvCatalog); v != "" {
		c.Catalog = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) resolvePaths(base string) {
	if c.Database != "" && c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(base, c.Database)
	}
	if c.Catalog != "" && !filepath.IsAbs(c.Catalog) {
		c.Catalog = filepath.Join(base, c.Catalog)
	}
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("database must be set")
	}
	if c.Catalog == "" {
		return errors.New("catalog must be set")
	}
	if r := c.Engine.DefaultLossRate; r.Valid {
		if err := domain.ValidateLossRate(r.Decimal); err != nil {
			return fmt.Errorf("engine.default_loss_rate: %w", err)
		}
	}
	if t := c.Engine.RatioTolerance; !t.Valid || !t.Decimal.IsPositive() {
		return fmt.Errorf("engine.ratio_tolerance must be positive, got %s", t.Decimal)
	}
	if c.Engine.ExecuteTimeout <= 0 {
		return fmt.Errorf("engine.execute_timeout must be positive, got %s", c.Engine.ExecuteTimeout)
	}
	if strings.ContainsAny(c.Engine.BatchPrefix, "- \t") {
		return fmt.Errorf("engine.batch_prefix %q must not contain dashes or spaces", c.Engine.BatchPrefix)
	}
	if c.Store.BusyTimeout < 0 {
		return fmt.Errorf("store.busy_timeout must not be negative, got %s", c.Store.BusyTimeout)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EngineConfig converts the engine settings.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		DefaultLossRate: c.Engine.DefaultLossRate.NullDecimal,
		RatioTolerance:  c.Engine.RatioTolerance.Decimal,
		ExecuteTimeout:  c.Engine.ExecuteTimeout,
		BatchPrefix:     c.Engine.BatchPrefix,
	}
}

// StoreOptions converts the store settings.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{store.WithBusyTimeout(c.Store.BusyTimeout)}
}

// LogLevel returns the configured slog level.
func (c Config) LogLevel() slog.Level {
	level, _ := ParseLevel(c.Log.Level)
	return level
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q must be one of debug, info, warn, error", name)
	}
}
